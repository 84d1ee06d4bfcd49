// Package link provides host-side tools driving an L0 device over a
// serial link: sending images, monitoring output and probing the
// diagnostic echo.
package link
