package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// errorDetail mirrors the Shelfscan API error model.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// acceptedResponse mirrors the POST /scrape response, or an error reply.
type acceptedResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *errorDetail `json:"error"`
}

// statusResponse mirrors GET /scrape/:id.
type statusResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress struct {
		Phase   string `json:"phase"`
		Done    int    `json:"done"`
		Total   int    `json:"total"`
		Message string `json:"message"`
	} `json:"progress"`
	NewRows    int          `json:"new_rows"`
	TotalRows  int          `json:"total_rows"`
	Columns    []string     `json:"columns"`
	Filename   string       `json:"filename"`
	DurationMs int64        `json:"duration_ms"`
	Warning    string       `json:"warning"`
	Error      *errorDetail `json:"error"`
}

// exportResponse mirrors GET /scrape/:id/export.
type exportResponse struct {
	Filename      string       `json:"filename"`
	MimeType      string       `json:"mime_type"`
	ContentBase64 string       `json:"content_base64"`
	Error         *errorDetail `json:"error"`
}

func main() {
	apiURL := os.Getenv("SHELFSCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: a server started without SHELFSCAN_API_KEYS accepts anonymous calls.
	apiKey := os.Getenv("SHELFSCAN_API_KEY")

	s := server.NewMCPServer(
		"shelfscan",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_products",
		mcp.WithDescription("Crawl an e-commerce listing page, extract product details (name, price, SKU, specs, compatible brands) from every linked product page and return them as CSV."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The listing or category page to start from"),
		),
		mcp.WithNumber("max_products",
			mcp.Description("Maximum product pages to extract (default: 50, max: 1000)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum listing pages to scan for product links (default: 5, max: 50)"),
		),
		mcp.WithBoolean("use_browser",
			mcp.Description("Render pages in a headless browser. Use for JavaScript-heavy shops."),
		),
	)
	s.AddTool(scrapeTool, handleScrapeProducts(apiURL, apiKey))

	statusTool := mcp.NewTool("scrape_status",
		mcp.WithDescription("Report the progress or outcome of a scrape job."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The job ID returned by scrape_products"),
		),
	)
	s.AddTool(statusTool, handleScrapeStatus(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Shelfscan API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// setAuth adds the API key header when a key is configured.
func setAuth(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
}

// apiGet sends a GET request to the Shelfscan API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	setAuth(req, apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) (*statusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiGet(ctx, client, apiURL, apiKey, endpoint)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}
			var status statusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Error != nil && status.Status == "" {
				return nil, fmt.Errorf("[%s] %s", status.Error.Code, status.Error.Message)
			}
			if status.Status != "processing" {
				return &status, nil
			}
		}
	}
}

func handleScrapeProducts(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{
			"url":         url,
			"format":      "csv",
			"use_browser": request.GetBool("use_browser", false),
		}
		args := request.GetArguments()
		if v, ok := args["max_products"]; ok {
			payload["max_products"] = v
		}
		if v, ok := args["max_pages"]; ok {
			payload["max_pages"] = v
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape request failed: %v", err)), nil
		}
		var accepted acceptedResponse
		if err := json.Unmarshal(respBody, &accepted); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse scrape response: %v", err)), nil
		}
		if accepted.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", accepted.Error.Code, accepted.Error.Message)), nil
		}
		if accepted.ID == "" {
			return mcp.NewToolResultError("scrape job creation failed"), nil
		}

		status, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/scrape/"+accepted.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling scrape job failed: %v", err)), nil
		}

		var sb strings.Builder
		writeSummary(&sb, status)
		if status.Status != "completed" {
			return mcp.NewToolResultText(sb.String()), nil
		}

		exportBody, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/scrape/"+accepted.ID+"/export")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export request failed: %v", err)), nil
		}
		var exp exportResponse
		if err := json.Unmarshal(exportBody, &exp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse export: %v", err)), nil
		}
		if exp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", exp.Error.Code, exp.Error.Message)), nil
		}
		csv, err := base64.StdEncoding.DecodeString(exp.ContentBase64)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to decode export: %v", err)), nil
		}

		sb.WriteString("\n")
		sb.Write(csv)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleScrapeStatus(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/scrape/"+id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}
		var status statusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse status: %v", err)), nil
		}
		if status.Status == "" && status.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", status.Error.Code, status.Error.Message)), nil
		}

		var sb strings.Builder
		writeSummary(&sb, &status)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func writeSummary(sb *strings.Builder, s *statusResponse) {
	fmt.Fprintf(sb, "Scrape %s: %s\n", s.ID, s.Status)
	switch s.Status {
	case "processing":
		fmt.Fprintf(sb, "Phase: %s (%d/%d) %s\n", s.Progress.Phase, s.Progress.Done, s.Progress.Total, s.Progress.Message)
	case "completed":
		fmt.Fprintf(sb, "New products: %d, total rows: %d, took %dms\n", s.NewRows, s.TotalRows, s.DurationMs)
		fmt.Fprintf(sb, "Columns: %s\n", strings.Join(s.Columns, ", "))
	case "empty":
		fmt.Fprintf(sb, "Warning: %s\n", s.Warning)
	case "failed":
		if s.Error != nil {
			fmt.Fprintf(sb, "Error: [%s] %s\n", s.Error.Code, s.Error.Message)
		}
	}
}
