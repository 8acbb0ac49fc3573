package cmds

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory/events"
	"github.com/go-go-golems/chatmemory/pkg/chatmemory/repository"
	"github.com/go-go-golems/chatmemory/pkg/httpapi"
	"github.com/go-go-golems/chatmemory/pkg/observability"
	"github.com/go-go-golems/chatmemory/pkg/redisstream"
	"github.com/go-go-golems/chatmemory/pkg/settings"
)

const metricsNamespace = "chat_memory"

type ServeCommand struct {
	*cmds.CommandDescription
}

func NewServeCommand() (*ServeCommand, error) {
	retentionSection, err := settings.NewRetentionSection()
	if err != nil {
		return nil, err
	}
	serverSection, err := settings.NewServerSection()
	if err != nil {
		return nil, err
	}
	eventsSection, err := redisstream.NewParameterLayer()
	if err != nil {
		return nil, err
	}
	sections, err := storeSections(retentionSection, serverSection, eventsSection)
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"serve",
		cmds.WithShort("Serve the chat memory store over HTTP"),
		cmds.WithLong(`Serve the conversation store over HTTP. Every mutation publishes a change
event; with retention enabled a worker consumes saved events and trims
conversations that reached max-limit.`),
		cmds.WithSections(sections...),
	)
	return &ServeCommand{CommandDescription: desc}, nil
}

func (c *ServeCommand) RunIntoWriter(ctx context.Context, parsedLayers *values.Values, _ io.Writer) error {
	rs := settings.RetentionSettings{}
	if err := parsedLayers.DecodeSectionInto(settings.RetentionSlug, &rs); err != nil {
		return errors.Wrap(err, "decode retention settings")
	}
	if err := rs.Validate(); err != nil {
		return err
	}
	ss := settings.ServerSettings{}
	if err := parsedLayers.DecodeSectionInto(settings.ServerSlug, &ss); err != nil {
		return errors.Wrap(err, "decode server settings")
	}
	es := redisstream.Settings{}
	if err := parsedLayers.DecodeSectionInto(redisstream.SectionSlug, &es); err != nil {
		return errors.Wrap(err, "decode events settings")
	}
	if es.Topic == "" {
		es.Topic = redisstream.DefaultTopic
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(metricsNamespace, reg)

	if rs.Enabled {
		if err := redisstream.EnsureGroupForSettings(ctx, es); err != nil {
			return errors.Wrap(err, "ensure consumer group")
		}
	}
	pubsub, err := redisstream.BuildPubSub(es)
	if err != nil {
		return errors.Wrap(err, "build event transport")
	}
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Warn().Err(err).Msg("closing event transport failed")
		}
	}()

	notifier, err := events.NewWatermillNotifier(pubsub.Publisher, es.Topic)
	if err != nil {
		return err
	}
	repo, closeStore, err := openRepository(ctx, parsedLayers, metrics, repository.WithNotifier(notifier))
	if err != nil {
		return err
	}
	defer closeStore()

	var serverOpts []httpapi.Option
	if ss.MetricsEnabled {
		serverOpts = append(serverOpts, httpapi.WithMetrics(reg))
	}
	server := httpapi.New(repo, serverOpts...)

	eg, ctx := errgroup.WithContext(ctx)
	if rs.Enabled {
		worker, err := events.NewRetentionWorker(pubsub.Subscriber, es.Topic, repo.Trimmer(), rs.MaxLimit, rs.DeleteCount)
		if err != nil {
			return err
		}
		eg.Go(func() error { return worker.Run(ctx) })
	}
	eg.Go(func() error {
		log.Info().Str("addr", ss.Addr).Msg("starting chat memory server")
		return server.ListenAndServe(ctx, ss.Addr, time.Duration(ss.ShutdownTimeout)*time.Second)
	})

	err = eg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("server shutdown complete")
	return nil
}

var _ cmds.WriterCommand = &ServeCommand{}
