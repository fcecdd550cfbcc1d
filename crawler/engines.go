package crawler

import (
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/scraper"
)

// DefaultEngines picks the network engine, or starts a browser session
// when the source asks for one. The session is released by the crawler.
func DefaultEngines(cfg *config.Config) EngineFactory {
	return func(src *models.Source) (engine.Engine, func(), error) {
		if !src.UseBrowser {
			return engine.NewHTTPEngine(cfg.Fetch), nil, nil
		}

		bc := cfg.Browser
		bc.Headless = src.Headless
		bc.DisableImages = src.DisableImages
		session, err := scraper.NewSession(bc, cfg.Fetch.UserAgent)
		if err != nil {
			return nil, nil, err
		}
		return engine.NewRodEngine(session.Render), session.Close, nil
	}
}
