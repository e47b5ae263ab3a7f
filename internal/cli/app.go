package cli

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sowinskl/go-syscmd/config"
	"github.com/sowinskl/go-syscmd/logging"
	"github.com/sowinskl/go-syscmd/rabbitmq"
	"github.com/sowinskl/go-syscmd/syscmd"
)

// app holds what every subcommand needs: configuration, the logger and the
// optional RabbitMQ client.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	closeLog func() error
	mq       *rabbitmq.Client
}

func newApp(cfgFile string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.Setup(cfg.Log.Logging(), logOut)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logger, closeLog: closeLog}

	if cfg.RabbitMQ.Enabled() {
		client, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:            cfg.RabbitMQ.URL,
			AppName:        cfg.RabbitMQ.AppName,
			Exchange:       cfg.RabbitMQ.Exchange,
			RoutingKey:     cfg.RabbitMQ.RoutingKey,
			ReconnectDelay: cfg.RabbitMQ.ReconnectDelay,
		}, logger)
		if err != nil {
			// Auditing is best effort; commands still run without the broker.
			logger.WithError(err).Warn("RabbitMQ unavailable, audit events and remote stop disabled")
		} else {
			a.mq = client
			logger.AddHook(rabbitmq.NewAuditHook(client, rabbitmq.DefaultPublishTimeout))
		}
	}
	return a, nil
}

// executor returns an Executor logging through the app logger and, with
// RabbitMQ configured, stoppable through the stop queue until ctx ends.
func (a *app) executor(ctx context.Context) *syscmd.Executor {
	exec := syscmd.New().WithLogger(a.log).Timeout(a.cfg.Executor.DefaultTimeout)

	if a.mq != nil && a.cfg.RabbitMQ.StopQueue != "" {
		go func() {
			err := a.mq.ConsumeStopRequests(ctx, rabbitmq.Consumer{
				Name:       a.cfg.RabbitMQ.AppName,
				Queue:      a.cfg.RabbitMQ.StopQueue,
				RetryMax:   a.cfg.RabbitMQ.RetryMax,
				RetryStart: a.cfg.RabbitMQ.RetryStart,
			}, exec)
			if err != nil {
				a.log.WithError(err).Debug("Stop request consumer ended")
			}
		}()
	}
	return exec
}

func (a *app) close() {
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			a.log.WithError(err).Debug("Closing RabbitMQ client")
		}
	}
	if err := a.closeLog(); err != nil {
		a.log.WithError(err).Warn("Closing command log")
	}
}
