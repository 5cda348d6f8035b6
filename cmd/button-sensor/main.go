// Command button-sensor classifies presses of a GPIO push button and publishes
// clicks, double clicks and long presses to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "button-sensor",
		Short:        "Publish push button gestures to MQTT",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadFile(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./button-sensor.yaml or /etc/button-sensor/button-sensor.yaml)")
	flags.String("name", v.GetString(config.KeyName), "button name used in MQTT topics")
	flags.Int("pin", v.GetInt(config.KeyPin), "BCM pin number")
	flags.String("chip", v.GetString(config.KeyChip), "GPIO chip (gpiocdev backend)")
	flags.Bool("active-low", v.GetBool(config.KeyActiveLow), "button pulls the line low when pressed")
	flags.String("backend", v.GetString(config.KeyBackend), `GPIO backend ("gpiocdev" or "rpio")`)
	flags.Duration("poll", v.GetDuration(config.KeyPoll), "GPIO polling interval")
	flags.Duration("debounce", v.GetDuration(config.KeyDebounce), "minimum press length")
	flags.Duration("click", v.GetDuration(config.KeyClick), "double click window")
	flags.Duration("long-press", v.GetDuration(config.KeyLongPress), "hold time before a long press starts")
	flags.StringSlice("events", v.GetStringSlice(config.KeyEvents), "gestures to detect (click, double_click, long_press)")
	flags.String("broker", v.GetString(config.KeyBroker), "MQTT broker address")
	flags.String("client-id", "", "MQTT client ID (default button-sensor-<name>)")
	flags.String("topic-prefix", v.GetString(config.KeyTopicPrefix), "MQTT topic prefix")
	flags.Int("buffer", v.GetInt(config.KeyBuffer), "messages kept while the broker is unreachable")
	flags.Duration("heartbeat", v.GetDuration(config.KeyHeartbeat), "heartbeat interval (0 to disable)")
	flags.String("http", v.GetString(config.KeyHTTP), "HTTP status address (empty to disable)")
	flags.String("log-level", v.GetString(config.KeyLogLevel), "log level")
	flags.String("log-format", v.GetString(config.KeyLogFormat), `log format ("text" or "json")`)

	for key, flag := range map[string]string{
		config.KeyName:        "name",
		config.KeyPin:         "pin",
		config.KeyChip:        "chip",
		config.KeyActiveLow:   "active-low",
		config.KeyBackend:     "backend",
		config.KeyPoll:        "poll",
		config.KeyDebounce:    "debounce",
		config.KeyClick:       "click",
		config.KeyLongPress:   "long-press",
		config.KeyEvents:      "events",
		config.KeyBroker:      "broker",
		config.KeyClientID:    "client-id",
		config.KeyTopicPrefix: "topic-prefix",
		config.KeyBuffer:      "buffer",
		config.KeyHeartbeat:   "heartbeat",
		config.KeyHTTP:        "http",
		config.KeyLogLevel:    "log-level",
		config.KeyLogFormat:   "log-format",
	} {
		// Lookup cannot fail for the flags registered above
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(newRunCmd(v), newStateCmd(v))
	return root
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the button and publish gestures until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			if err := run(cfg, v, logger); err != nil {
				logger.WithError(err).Error("fatal")
				return err
			}
			return nil
		},
	}
}

func newStateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print whether the button is currently pressed and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			reader, err := gpio.Open(cfg.Backend, cfg.Chip, cfg.Pin, cfg.Polarity())
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer reader.Close()

			return printState(cmd, cfg.Name, reader)
		},
	}
}

func printState(cmd *cobra.Command, name string, reader gpio.Reader) error {
	pressed, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, pressedString(pressed))
	return nil
}

func run(cfg config.Config, v *viper.Viper, logger *logrus.Logger) error {
	log := logger.WithField("component", "daemon")

	// Initialize GPIO
	gpioReader, err := gpio.Open(cfg.Backend, cfg.Chip, cfg.Pin, cfg.Polarity())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:      cfg.Broker,
		ClientID:    cfg.ClientID,
		Name:        cfg.Name,
		TopicPrefix: cfg.TopicPrefix,
		BufferSize:  cfg.Buffer,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTPAddr).Info("http status server listening")
	}

	watcher := config.NewWatcher(v, logger)
	watcher.Start()

	log.WithFields(logrus.Fields{
		"name":      cfg.Name,
		"pin":       cfg.Pin,
		"backend":   cfg.Backend,
		"polarity":  cfg.Polarity(),
		"poll":      cfg.Poll,
		"debounce":  cfg.Debounce,
		"click":     cfg.Click,
		"long":      cfg.LongPress,
		"events":    cfg.EventNames(),
		"broker":    cfg.Broker,
		"heartbeat": cfg.Heartbeat,
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	settings := loopSettings{
		Polarity:  cfg.Polarity(),
		Timing:    cfg.Timing(),
		Kinds:     cfg.Events,
		Heartbeat: cfg.Heartbeat,
	}
	return runLoop(gpioReader, publisher, publisher, tracker, settings, time.Now, ticker.C, sigCh, watcher.Updates(), log)
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Name:        cfg.Name,
		Pin:         cfg.Pin,
		Polarity:    cfg.Polarity().String(),
		Backend:     string(cfg.Backend),
		Events:      cfg.EventNames(),
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		ClickMs:     cfg.Click.Milliseconds(),
		LongPressMs: cfg.LongPress.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	}
}

// loopSettings configures the button driven by runLoop.
type loopSettings struct {
	Polarity  logic.Polarity
	Timing    logic.Timing
	Kinds     []logic.Kind
	Heartbeat time.Duration
}

func runLoop(gpioReader gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, settings loopSettings, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, reload <-chan logic.Timing, log logrus.FieldLogger) error {
	startTime := now()
	button := logic.NewButton(settings.Polarity)
	button.SetTiming(settings.Timing)
	detector := logic.NewDetector(button, startTime)
	detector.Enable(settings.Kinds...)

	for {
		select {
		case s := <-sig:
			log.WithField("signal", s).Info("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.WithError(err).Warn("failed to publish shutdown event")
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case timing := <-reload:
			// Applied between ticks; the button is only touched from this goroutine
			button.SetTiming(timing)
			if tracker != nil {
				tracker.SetTiming(timing)
			}
			log.WithFields(logrus.Fields{
				"debounce_ms":   timing.Debounce,
				"click_ms":      timing.ClickWindow,
				"long_press_ms": timing.LongPress,
			}).Info("timing updated")

		case <-tick:
			t := now()
			pressed, err := gpioReader.Read()
			if err != nil {
				log.WithError(err).Warn("gpio read error")
				continue
			}

			events := detector.Process(logic.Input{
				Pressed: pressed,
				Time:    t,
			})

			for _, event := range events {
				if !mqtt.Publishable(event.Type) {
					continue
				}
				log.WithFields(logrus.Fields{
					"event":   event.Type,
					"state":   event.State,
					"held_ms": event.Held.Milliseconds(),
				}).Info("event")
				if tracker != nil {
					tracker.SetLastEvent(event)
				}
				if err := publisher.Publish(event); err != nil {
					// Don't crash on publish failure
					log.WithError(err).Warn("publish error")
				}
			}

			// Check for heartbeat
			if hbData := detector.CheckHeartbeat(t, settings.Heartbeat); hbData != nil {
				log.WithFields(logrus.Fields{
					"uptime":       hbData.Uptime,
					"click":        hbData.Counts.Click,
					"double_click": hbData.Counts.DoubleClick,
					"long_press":   hbData.Counts.LongPressStart,
				}).Info("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					state, longPressed := detector.CurrentState()
					tracker.Update(state, longPressed, detector.EventCountsSnapshot())
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.WithError(err).Warn("heartbeat publish error")
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				state, longPressed := detector.CurrentState()
				tracker.Update(state, longPressed, detector.EventCountsSnapshot())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
