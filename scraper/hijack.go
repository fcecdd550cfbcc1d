package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// imageTypes are failed when image loading is disabled.
var imageTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeImage: {},
	proto.NetworkResourceTypeMedia: {},
	proto.NetworkResourceTypeFont:  {},
}

// trackerHosts are analytics and ad hosts common on storefronts. None of
// them contribute product markup.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"criteo.com":            {},
	"criteo.net":            {},
	"hotjar.com":            {},
	"klaviyo.com":           {},
	"bing.com":              {},
	"pinimg.com":            {},
	"tiktok.com":            {},
	"yotpo.com":             {},
	"bazaarvoice.com":       {},
	"segment.io":            {},
	"segment.com":           {},
	"nr-data.net":           {},
	"clarity.ms":            {},
}

// isTrackerHost reports whether host or one of its parent domains is a
// known tracker.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// shouldBlock decides one intercepted request.
func shouldBlock(rt proto.NetworkResourceType, rawURL string, blockImages, blockTrackers bool) bool {
	if blockImages {
		if _, ok := imageTypes[rt]; ok {
			return true
		}
	}
	if blockTrackers {
		if u, err := url.Parse(rawURL); err == nil && isTrackerHost(u.Hostname()) {
			return true
		}
	}
	return false
}

// setupHijack installs a request interceptor on the tab. It returns nil
// when there is nothing to block; otherwise the caller must Stop the
// returned router.
func setupHijack(page *rod.Page, blockImages, blockTrackers bool) *rod.HijackRouter {
	if !blockImages && !blockTrackers {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(ctx.Request.Type(), ctx.Request.URL().String(), blockImages, blockTrackers) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
