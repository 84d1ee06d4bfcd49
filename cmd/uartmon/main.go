// uartmon prints what a device sends for a while, optionally
// republishing it to MQTT and websocket clients. With -sub it prints
// what another station republishes instead of opening a port.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/picoload/pkg/framework"
	"github.com/robotalks/picoload/pkg/l1/comm/mqtt"
	"github.com/robotalks/picoload/pkg/l1/comm/websocket"
	"github.com/robotalks/picoload/pkg/l1/env"
	"github.com/robotalks/picoload/pkg/l1/link"
)

var (
	duration = 10 * time.Second
	lines    bool
	wsAddr   string
	sub      bool
)

func init() {
	env.SetupFlags()
	flag.DurationVar(&duration, "duration", duration, "How long to monitor, 0 for forever")
	flag.BoolVar(&lines, "lines", lines, "Print ASCII lines instead of hex dumps")
	flag.StringVar(&wsAddr, "ws", wsAddr, "Serve a websocket tap on this address")
	flag.BoolVar(&sub, "sub", sub, "Print chunks republished by station -id")
}

func printer() link.ChunkHandler {
	if lines {
		return &link.LineHandler{OnLine: func(line string) {
			fmt.Println(line)
		}}
	}
	return link.HandleChunkFunc(func(ctx context.Context, c link.Chunk) error {
		fmt.Printf("%s %s\n", c.At.Format("15:04:05.000"), link.FormatHex(c.Data))
		return nil
	})
}

func main() {
	flag.Parse()
	conf := env.NewConfig()
	runner := fx.NewRunner().HandleSignals()

	q, err := conf.ConnectQueue()
	if err != nil {
		glog.Exitln(err)
	}
	if q != nil {
		defer q.Close()
	}

	out := printer()
	if sub {
		if q == nil {
			glog.Exitln("-sub requires -mqtt")
		}
		token := mqtt.Subscribe(q, conf.StationID, out)
		if err := mqtt.WaitToken(token, mqtt.DefaultConnectTimeout); err != nil {
			glog.Exitf("subscribe %s: %v", mqtt.StationTopic(conf.StationID), err)
		}
		if duration > 0 {
			time.AfterFunc(duration, runner.Stop)
		}
		runner.Go(fx.NamedRun("sub", fx.RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})))
		if err := runner.Wait(); err != nil {
			glog.Exitln(err)
		}
		return
	}

	p := conf.MustOpenPort()
	defer p.Close()

	handlers := link.ChunkHandlers{out}
	if q != nil {
		pub := mqtt.NewPublisher(q, conf.StationID)
		glog.Infof("republishing to %s%s", q.TopicPrefix, pub.Topic())
		handlers = append(handlers, pub)
		runner.Go(fx.NamedRun("publish", pub))
	}
	if wsAddr != "" {
		tap := websocket.NewTap()
		handlers = append(handlers, tap)
		ln, err := net.Listen("tcp", wsAddr)
		if err != nil {
			glog.Exitln(err)
		}
		server := &http.Server{Handler: tap.Handler()}
		glog.Infof("websocket tap on %s", ln.Addr())
		runner.Go(fx.NamedRun("ws", fx.RunFunc(func(ctx context.Context) error {
			err := fx.RunWithContextCloser(ctx, server, func() error {
				return server.Serve(ln)
			})
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})))
	}

	mon := &link.Monitor{R: p, Duration: duration, Handler: handlers}
	runner.Go(fx.NamedRun("port", p), fx.NamedRun("monitor", mon))
	err = runner.Wait()
	if lh, ok := out.(*link.LineHandler); ok {
		lh.Flush()
	}
	glog.Infof("%d bytes received", mon.Total())
	if err != nil {
		glog.Exitln(err)
	}
}
