// Package env provides common configuration for host tools.
package env

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/picoload/pkg/l0/uart"
	"github.com/robotalks/picoload/pkg/l1/comm/mqtt"
	"github.com/robotalks/picoload/pkg/l1/port"
)

// Config provides common options shared by host tools.
type Config struct {
	// Port is the serial device. Empty means auto-detect.
	Port     string
	BaudRate int
	// Timeout bounds the wait between bytes. Zero waits forever.
	Timeout time.Duration

	// MQTTBrokerURL specifies the MQTT broker to republish to,
	// e.g. mqtt://host:port/topic-prefix. Empty disables MQTT.
	MQTTBrokerURL string
	// StationID identifies this host in MQTT topics.
	StationID string
}

const appID = "picoload"

var defaultConfig = Config{
	BaudRate: uart.BaudRate,
}

func init() {
	if val := os.Getenv("PICOLOAD_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("PICOLOAD_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	defaultConfig.StationID = StationID()
}

// StationID derives a stable ID of this machine. It falls back to the
// host name when no machine ID is available.
func StationID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		if len(id) > 12 {
			id = id[:12]
		}
		return id
	}
	glog.V(1).Infof("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return appID
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port, auto-detect if empty")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Baud rate")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Max wait between bytes, 0 waits forever")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.StationID, "id", defaultConfig.StationID, "Station ID")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// PortName returns the configured port or detects one.
func (c *Config) PortName() (string, error) {
	if c.Port != "" {
		return c.Port, nil
	}
	name, err := port.Detect()
	if err != nil {
		return "", err
	}
	glog.Infof("detected serial port %s", name)
	return name, nil
}

// OpenPort opens the configured serial port.
func (c *Config) OpenPort() (*port.Port, error) {
	name, err := c.PortName()
	if err != nil {
		return nil, err
	}
	return port.Open(port.Config{Name: name, BaudRate: c.BaudRate})
}

// MustOpenPort opens the serial port and fails on error.
func (c *Config) MustOpenPort() *port.Port {
	p, err := c.OpenPort()
	if err != nil {
		glog.Exitln(err)
	}
	return p
}

// ConnectQueue connects to the MQTT broker. It returns nil without
// error when MQTT is not configured.
func (c *Config) ConnectQueue() (*mqtt.Queue, error) {
	if c.MQTTBrokerURL == "" {
		return nil, nil
	}
	q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt url: %w", err)
	}
	if err := q.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.MQTTBrokerURL, err)
	}
	return q, nil
}
