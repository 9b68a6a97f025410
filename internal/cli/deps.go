package cli

import (
	"github.com/HefnerLance/bubble-mongo-linker/internal/businesses/matcher"
	businessrepo "github.com/HefnerLance/bubble-mongo-linker/internal/businesses/repository"
	linkrepo "github.com/HefnerLance/bubble-mongo-linker/internal/links/repository"
	"github.com/HefnerLance/bubble-mongo-linker/internal/links/service"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/bubble"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/throttle"
)

type reconcileDeps struct {
	bubble     *bubble.Client
	links      linkrepo.LinkRepository
	reconciler service.Reconciler
}

func newBubbleClient(cfg *config.Config) (*bubble.Client, error) {
	if err := cfg.RequireBubble(); err != nil {
		return nil, err
	}
	cfg.SetRedis()

	return bubble.NewClient(bubble.Options{
		BaseURL:       cfg.BubbleBaseURL,
		Token:         cfg.BubbleAPIToken,
		DataType:      cfg.BubbleDataType,
		LegacyIDField: cfg.BubbleLegacyIDField,
		Timeout:       cfg.BubbleTimeout,
		CacheTTL:      cfg.RecordCacheTTL,
		Gate:          throttle.New(cfg.Client.Redis, ""),
		Logger:        cfg.Log,
	}), nil
}

// buildReconciler connects Mongo (and Redis when configured) and wires the
// reconciliation pipeline.
func buildReconciler(cfg *config.Config) (*reconcileDeps, error) {
	fetcher, err := newBubbleClient(cfg)
	if err != nil {
		return nil, err
	}
	cfg.SetMongo()

	businesses := businessrepo.NewMongoBusinessRepository(cfg)
	links := linkrepo.NewMongoLinkRepository(cfg)
	m := matcher.NewMatcher(businesses, cfg.Log)

	return &reconcileDeps{
		bubble:     fetcher,
		links:      links,
		reconciler: service.NewReconciler(fetcher, m, links, cfg.Log),
	}, nil
}
