package cinema

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/omriharel/cinema/pkg/cinema/util"
)

// RemoteCommand is a button event sent by the hardware remote.
type RemoteCommand string

const (
	RemoteToggle  RemoteCommand = "toggle"
	RemotePause   RemoteCommand = "pause"
	RemoteResume  RemoteCommand = "resume"
	RemoteRestart RemoteCommand = "restart"
	RemoteMount   RemoteCommand = "mount"
	RemoteUnmount RemoteCommand = "unmount"
)

var remoteCommands = []string{
	string(RemoteToggle),
	string(RemotePause),
	string(RemoteResume),
	string(RemoteRestart),
	string(RemoteMount),
	string(RemoteUnmount),
}

// parseRemoteLine turns one line of the serial protocol into a command.
// Lines are case insensitive; "a" is the controller's play/pause button.
func parseRemoteLine(line string) (RemoteCommand, bool) {
	command := strings.ToLower(strings.TrimSpace(line))
	if command == "a" {
		return RemoteToggle, true
	}

	if !funk.ContainsString(remoteCommands, command) {
		return "", false
	}

	return RemoteCommand(command), true
}

// RemoteIO reads button events from a hardware remote on a serial port
type RemoteIO struct {
	cinema *Cinema
	logger *zap.SugaredLogger

	lock        sync.Mutex
	stopChannel chan bool
	connected   bool
	connOptions serial.OpenOptions
	conn        io.ReadWriteCloser

	commandConsumers []chan RemoteCommand
}

// NewRemoteIO creates a new RemoteIO instance
func NewRemoteIO(cinema *Cinema, logger *zap.SugaredLogger) (*RemoteIO, error) {
	logger = logger.Named("remote")

	rio := &RemoteIO{
		cinema:      cinema,
		logger:      logger,
		stopChannel: make(chan bool, 1),
	}

	logger.Debug("Created remote IO instance")
	return rio, nil
}

// SetParent attaches the owning app, which provides the connection settings
func (rio *RemoteIO) SetParent(cinema *Cinema) {
	rio.cinema = cinema
}

// Enabled reports whether a serial port is configured
func (rio *RemoteIO) Enabled() bool {
	return rio.cinema.config.Remote.COMPort != ""
}

// Start attempts to establish the serial connection
func (rio *RemoteIO) Start() error {
	rio.lock.Lock()
	defer rio.lock.Unlock()

	if rio.connected {
		rio.logger.Warn("Connection already active, cannot start a new one")
		return errors.New("remote: connection already active")
	}

	minimumReadSize := 0
	if util.Linux() {
		minimumReadSize = 1
	}

	rio.connOptions = serial.OpenOptions{
		PortName:        rio.cinema.config.Remote.COMPort,
		BaudRate:        uint(rio.cinema.config.Remote.BaudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: uint(minimumReadSize),
	}

	rio.logger.Debugw("Opening serial connection",
		"comPort", rio.connOptions.PortName,
		"baudRate", rio.connOptions.BaudRate,
		"minReadSize", minimumReadSize)

	conn, err := serial.Open(rio.connOptions)
	if err != nil {
		rio.logger.Warnw("Failed to open serial connection", "error", err)
		return fmt.Errorf("open serial connection: %w", err)
	}

	rio.conn = conn
	rio.connected = true
	rio.logger.Infow("Remote connected", "port", rio.connOptions.PortName)

	go rio.readLoop(conn)

	return nil
}

// Stop shuts down the serial connection if active
func (rio *RemoteIO) Stop() {
	rio.lock.Lock()
	connected := rio.connected
	rio.lock.Unlock()

	if !connected {
		rio.logger.Debug("No active connection to stop")
		return
	}

	rio.logger.Debug("Closing serial connection")
	select {
	case rio.stopChannel <- true:
	default:
	}
	rio.closeConnection()
}

// SubscribeToCommands returns a channel receiving every parsed remote command
func (rio *RemoteIO) SubscribeToCommands() chan RemoteCommand {
	ch := make(chan RemoteCommand)
	rio.commandConsumers = append(rio.commandConsumers, ch)
	return ch
}

// setupOnConfigReload reconnects when the port settings change
func (rio *RemoteIO) setupOnConfigReload() {
	configReloadedChannel := rio.cinema.config.SubscribeToChanges()
	const stopDelay = 50 * time.Millisecond

	go func() {
		defer rio.cinema.recoverFromPanic()

		for range configReloadedChannel {
			if !rio.needsReconnect() {
				continue
			}

			rio.logger.Info("Remote settings changed, reconnecting")
			rio.Stop()

			if !rio.Enabled() {
				continue
			}

			time.Sleep(stopDelay)

			if err := rio.Start(); err != nil {
				rio.logger.Warnw("Failed to reconnect", "error", err)
			} else {
				rio.logger.Debug("Reconnection successful")
			}
		}
	}()
}

func (rio *RemoteIO) readLoop(conn io.Reader) {
	defer rio.cinema.recoverFromPanic()

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-rio.stopChannel:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			rio.logger.Warnw("Failed to read from serial", "error", err)
			rio.closeConnection()
			return
		}

		rio.processLine(line)
	}
}

func (rio *RemoteIO) processLine(line string) {
	command, ok := parseRemoteLine(line)
	if !ok {
		rio.logger.Debugw("Ignoring unknown remote line", "line", strings.TrimSpace(line))
		return
	}

	rio.logger.Debugw("Remote command received", "command", command)
	for _, consumer := range rio.commandConsumers {
		consumer <- command
	}
}

func (rio *RemoteIO) closeConnection() {
	rio.lock.Lock()
	defer rio.lock.Unlock()

	if rio.conn != nil {
		if err := rio.conn.Close(); err != nil {
			rio.logger.Warnw("Error closing serial connection", "error", err)
		} else {
			rio.logger.Debug("Serial connection closed")
		}
	}
	rio.conn = nil
	rio.connected = false
}

func (rio *RemoteIO) needsReconnect() bool {
	rio.lock.Lock()
	defer rio.lock.Unlock()

	return rio.cinema.config.Remote.COMPort != rio.connOptions.PortName ||
		uint(rio.cinema.config.Remote.BaudRate) != rio.connOptions.BaudRate
}
