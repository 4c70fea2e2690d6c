package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/config"
	"github.com/yeremiapane/restaurant-backoffice/database"
	"github.com/yeremiapane/restaurant-backoffice/events"
	"github.com/yeremiapane/restaurant-backoffice/realtime"
	"github.com/yeremiapane/restaurant-backoffice/services"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

type options struct {
	filter   services.ListFilter
	watch    bool
	interval time.Duration
}

func main() {
	orderType := flag.String("type", services.FilterAll, "order type: all, delivery or pickup")
	status := flag.String("status", services.FilterAll, "order status or all")
	search := flag.String("q", "", "search by order id or customer name")
	watch := flag.Bool("watch", false, "keep the board open and redraw on changes")
	interval := flag.Duration("interval", 5*time.Second, "redraw interval in watch mode")
	flag.Parse()

	cfg, err := config.Load(utils.NewLogger("warn", "text"))
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.SetOutput(os.Stderr)

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	opts := options{
		filter:   services.ListFilter{Type: *orderType, Status: *status, Search: *search},
		watch:    *watch,
		interval: *interval,
	}
	err = run(ctx, db, cfg, logger, os.Stdout, opts)
	stop()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load orders")
	}
}

// run prints the board once, or keeps redrawing it until ctx ends in watch mode.
func run(ctx context.Context, db *gorm.DB, cfg *config.Config, logger *logrus.Logger, out io.Writer, opts options) error {
	// Without Kafka there is no feed to follow from outside the server, so watch mode
	// refetches on every tick instead.
	var transport realtime.Transport
	polling := !cfg.KafkaEnabled()
	if polling {
		broker := realtime.NewBroker(logger)
		defer broker.Close()
		transport = broker
	} else {
		transport = events.NewKafkaTransport(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup+"-cli", logger)
	}

	notices := &services.RecordingNotifier{}
	session := services.NewSession(database.NewGormStore(db, logger), transport, notices, logger)
	defer session.Close()
	if opts.watch {
		session.Start(ctx)
	}

	board := &boardPrinter{out: out, session: session, notices: notices}
	if err := board.Print(ctx, opts.filter); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if polling {
				<-session.Cache.Invalidate(services.OrdersKey)
			}
			fmt.Fprint(out, "\033[H\033[2J")
			if err := board.Print(ctx, opts.filter); err != nil {
				logger.WithError(err).Warn("Failed to refresh board")
			}
		}
	}
}
