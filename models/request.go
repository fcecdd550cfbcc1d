package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the listing page to start from. Required. A missing scheme
	// is filled in with https.
	URL string `json:"url" binding:"required"`

	// MaxProducts caps how many product pages are extracted.
	// Default: 50. Range: 1-1000.
	MaxProducts int `json:"max_products,omitempty" binding:"omitempty,min=1,max=1000"`

	// MaxPages caps how many listing pages discovery may scan.
	// Default: 5. Range: 1-50.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1,max=50"`

	// UseBrowser fetches through a scripted browser instead of plain HTTP.
	UseBrowser bool `json:"use_browser,omitempty"`

	// Headless controls the browser window. Default: true.
	Headless *bool `json:"headless,omitempty"`

	// DisableImages blocks images in browser mode. Default: true.
	DisableImages *bool `json:"disable_images,omitempty"`

	// Format selects the export encoding.
	// Allowed: "xlsx" (default), "csv", "markdown".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=xlsx csv markdown"`

	// Upload is a previously exported dataset to append the new rows to.
	Upload *UploadFile `json:"upload,omitempty"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// UploadFile carries a CSV or XLSX file inline.
type UploadFile struct {
	Name          string `json:"name" binding:"required"`
	ContentBase64 string `json:"content_base64" binding:"required"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.MaxProducts == 0 {
		r.MaxProducts = 50
	}
	if r.MaxPages == 0 {
		r.MaxPages = 5
	}
	if r.Headless == nil {
		t := true
		r.Headless = &t
	}
	if r.DisableImages == nil {
		t := true
		r.DisableImages = &t
	}
	if r.Format == "" {
		r.Format = "xlsx"
	}
}
