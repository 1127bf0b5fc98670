package link

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const readTimeout = 10 * time.Millisecond

// SerialLink implements the Link interface over a serial port. A background
// pump assembles incoming bytes into lines and buffers them; ReadLine drains
// that buffer without blocking.
type SerialLink struct {
	port   serial.Port
	lines  chan string
	logger *logrus.Entry

	closeOnce sync.Once
	done      chan struct{}
}

// NewSerialLink opens the named port at the given baud rate and starts the
// line pump.
func NewSerialLink(portName string, baud int, logger *logrus.Entry) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}

	l := &SerialLink{
		port:   port,
		lines:  make(chan string, 64),
		logger: logger.WithField("port", portName),
		done:   make(chan struct{}),
	}

	go l.pump()

	l.logger.Debug("Opened serial link")

	return l, nil
}

// WriteLine implements the Link interface.
func (l *SerialLink) WriteLine(line string) error {
	_, err := l.port.Write([]byte(line + "\n"))
	return err
}

// ReadLine implements the Link interface.
func (l *SerialLink) ReadLine() (string, bool) {
	select {
	case line := <-l.lines:
		return line, true
	default:
		return "", false
	}
}

// Close implements the Link interface.
func (l *SerialLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.port.Close()
	})
	return err
}

// pump reads bytes off the port and cuts them into lines. Read errors are
// not fatal; the pump backs off and tries again, so a flaky device just
// produces no reports for a while.
func (l *SerialLink) pump() {
	var pending strings.Builder
	buf := make([]byte, 256)

	for {
		select {
		case <-l.done:
			return
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			l.logger.WithError(err).Debug("Serial read failed")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		for _, c := range buf[:n] {
			if c == '\r' || c == '\n' {
				line := strings.TrimSpace(pending.String())
				pending.Reset()
				if line == "" {
					continue
				}
				select {
				case l.lines <- line:
				default:
					l.logger.WithField("line", line).Debug("Line buffer full, dropping")
				}
				continue
			}
			pending.WriteByte(c)
		}
	}
}
