package cmds

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/go-go-golems/glazed/pkg/cmds/sources"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory/codec"
	"github.com/go-go-golems/chatmemory/pkg/chatmemory/repository"
	"github.com/go-go-golems/chatmemory/pkg/observability"
	"github.com/go-go-golems/chatmemory/pkg/settings"
)

const envPrefix = "CHAT_MEMORY"

func commandMiddlewares(
	_ *values.Values,
	cmd *cobra.Command,
	args []string,
) ([]sources.Middleware, error) {
	return []sources.Middleware{
		sources.FromCobra(cmd),
		sources.FromArgs(args),
		sources.FromEnv(envPrefix,
			fields.WithSource("env"),
		),
		sources.FromDefaults(),
	}, nil
}

func storeSections(extra ...schema.Section) ([]schema.Section, error) {
	storeSection, err := settings.NewStoreSection()
	if err != nil {
		return nil, err
	}
	return append([]schema.Section{storeSection}, extra...), nil
}

func decodeStoreSettings(parsed *values.Values) (settings.StoreSettings, error) {
	s := settings.StoreSettings{}
	if err := parsed.DecodeSectionInto(settings.StoreSlug, &s); err != nil {
		return s, errors.Wrap(err, "decode store settings")
	}
	return s, nil
}

// openRepository builds a repository over the configured store. The returned
// close function releases the store connection.
func openRepository(
	ctx context.Context,
	parsed *values.Values,
	metrics *observability.Metrics,
	opts ...repository.Option,
) (*repository.Repository, func(), error) {
	s, err := decodeStoreSettings(parsed)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := settings.OpenAdapter(ctx, s, metrics)
	if err != nil {
		return nil, nil, err
	}
	if s.ConversationLocks {
		opts = append(opts, repository.WithConversationLocks())
	}
	if metrics != nil {
		opts = append(opts, repository.WithMetrics(metrics))
	}
	c := codec.New(codec.WithFallbackObserver(metrics.DecodeFallback))
	repo, err := repository.New(adapter, c, opts...)
	if err != nil {
		_ = adapter.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := adapter.Close(); err != nil {
			log.Warn().Err(err).Str("store", s.Store).Msg("closing store failed")
		}
	}
	return repo, closeFn, nil
}
