package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/roverlabs/go-rover/internal/config"
	"github.com/roverlabs/go-rover/internal/log"
	"github.com/roverlabs/go-rover/pkg/hardware"
	"github.com/roverlabs/go-rover/pkg/hub"
	"github.com/roverlabs/go-rover/pkg/rover"
	"github.com/roverlabs/go-rover/pkg/sensors"
	"github.com/roverlabs/go-rover/pkg/transport"
	"github.com/roverlabs/go-rover/pkg/transport/serialio"
	"github.com/roverlabs/go-rover/pkg/web"
)

func main() {
	serialPort := flag.String("serial", config.SerialPort("/dev/ttyS0"), "Serial port for the command link")
	baud := flag.Int("baud", config.SerialBaud(115200), "Command link baud rate")
	bridgePort := flag.String("bridge", config.BridgePort(""), "Motor board serial port (empty runs the simulated rig)")
	bridgeBaud := flag.Int("bridge-baud", 115200, "Motor board baud rate")
	dashboard := flag.String("dashboard", config.DashboardAddr(":8080"), "Dashboard listen address (empty to disable)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.L()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	var transports []transport.LineTransport

	serialLink, err := serialio.Open(*serialPort, *baud, logger)
	if err != nil {
		logger.Error("command link unavailable", "port", *serialPort, "error", err)
		os.Exit(1)
	}
	defer serialLink.Close()
	transports = append(transports, serialLink)

	var lineHub *hub.Hub
	if *dashboard != "" {
		lineHub = hub.New(logger)
		go lineHub.Run()
		defer lineHub.Close()
		transports = append(transports, lineHub)
	}

	var rig hardware.Rig
	if *bridgePort != "" {
		rig, err = hardware.OpenBoard(*bridgePort, *bridgeBaud, logger)
		if err != nil {
			logger.Error("motor board unavailable", "port", *bridgePort, "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no motor board configured, running simulated rig")
		rig = hardware.NewSim(logger)
	}
	defer rig.Close()

	r := rover.New(rover.Options{
		MotorDriver: rig,
		ArmWriter:   rig,
		FrontSensor: rig.Rangefinder(sensors.Front),
		RearSensor:  rig.Rangefinder(sensors.Rear),
		Transports:  transports,
		Logger:      logger,
	})

	if lineHub != nil {
		server := web.NewServer(*dashboard, lineHub, logger)
		server.OnSnapshot = r.Snapshot
		server.StartAsync()
		defer server.Shutdown()
	}

	logger.Info("rover firmware starting", "serial", *serialPort, "dashboard", *dashboard)
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("control loop failed", "error", err)
		os.Exit(1)
	}
	logger.Info("rover stopped")
}
