package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/venuebot/internal/config"
	"github.com/alanyoungcy/venuebot/internal/crypto"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/feed"
	"github.com/alanyoungcy/venuebot/internal/venue"
	"github.com/alanyoungcy/venuebot/internal/venue/paper"
	"github.com/alanyoungcy/venuebot/internal/venue/rest"
)

// venueSet is the routed adapter set plus direct handles on the paper
// venues and the book streams that must be run.
type venueSet struct {
	router  *venue.Router
	papers  map[string]*paper.Venue
	streams []*feed.BookStream
}

// buildVenues creates one adapter per configured venue. In dry-run mode
// every venue is a paper venue reading books from its REST upstream, when
// one is configured. A stream_url puts a pushed book stream in front of the
// REST reads.
func buildVenues(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*venueSet, error) {
	signer, err := loadSigner(cfg)
	if err != nil {
		return nil, err
	}
	if signer != nil {
		logger.Info("submission signer loaded", slog.String("address", signer.Address().Hex()))
	}

	httpClient := &http.Client{Timeout: cfg.Scheduler.SubmitTimeout.Duration}
	set := &venueSet{router: venue.NewRouter(), papers: make(map[string]*paper.Venue)}

	for _, vc := range cfg.Venues {
		var upstream domain.Venue
		if vc.BaseURL != "" {
			rc := rest.Config{
				VenueID:    vc.ID,
				Market:     vc.Market,
				Pair:       vc.Pair,
				BaseURL:    vc.BaseURL,
				Signer:     signer,
				Limiter:    deps.Limiter,
				RateLimit:  vc.RateLimit,
				HTTPClient: httpClient,
			}
			if vc.APIKey != "" {
				rc.Auth = &crypto.HMACAuth{Key: vc.APIKey, Secret: vc.APISecret, Passphrase: vc.Passphrase}
			}
			upstream = rest.NewClient(rc)

			if vc.StreamURL != "" {
				stream := feed.NewBookStream(feed.Config{
					VenueID: vc.ID,
					Market:  vc.Market,
					Pair:    vc.Pair,
					URL:     vc.StreamURL,
					MaxAge:  vc.StreamMaxAge.Duration,
				}, upstream, logger)
				set.streams = append(set.streams, stream)
				upstream = stream
			}
		}

		adapter := upstream
		if cfg.DryRun || vc.Adapter == "paper" {
			p := paper.New(upstream, vc.PaperTakerFee.Decimal, cfg.Scheduler.BookDepth)
			set.papers[vc.ID] = p
			adapter = p
		}
		if adapter == nil {
			return nil, fmt.Errorf("app: venue %s: no adapter", vc.ID)
		}
		if err := set.router.Register(vc.ID, adapter); err != nil {
			return nil, fmt.Errorf("app: venue %s: %w", vc.ID, err)
		}
		logger.Debug("venue registered",
			slog.String("venue", vc.ID),
			slog.String("adapter", vc.Adapter),
			slog.Bool("paper", set.papers[vc.ID] != nil),
		)
	}
	return set, nil
}

// loadSigner loads the wallet key when any live REST venue submits orders.
// A missing key is only an error when one is needed.
func loadSigner(cfg *config.Config) (*crypto.Signer, error) {
	live := false
	for _, vc := range cfg.Venues {
		if vc.Adapter == "rest" && !cfg.DryRun {
			live = true
		}
	}
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}, cfg.Wallet.ChainID)
	switch {
	case errors.Is(err, crypto.ErrNoKey) && !live:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("app: load signer: %w", err)
	}
	return signer, nil
}
