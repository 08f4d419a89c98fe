// Package torn fetches account state and market reference data from the Torn
// API and the YATA foreign-stock export, and assembles normalized snapshots.
// The detection core never performs I/O; everything it consumes comes from
// here as plain values.
package torn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tornwatch/tornwatch/internal/models"
)

// Client provides access to the Torn API and the foreign-stock feed.
type Client struct {
	apiURL     string
	stockURL   string
	httpClient *http.Client

	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig tunes retry behavior and the HTTP transport.
type ClientConfig struct {
	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// NewClient creates a new Torn client.
func NewClient(apiURL, stockURL string, timeout time.Duration, config ClientConfig) *Client {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelayBase <= 0 {
		config.RetryDelayBase = time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
	}
	return &Client{
		apiURL:   apiURL,
		stockURL: stockURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		maxRetries:     config.MaxRetries,
		retryDelayBase: config.RetryDelayBase,
	}
}

type apiError struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type barView struct {
	Current int `json:"current"`
	Maximum int `json:"maximum"`
}

type travelView struct {
	Destination string `json:"destination"`
	TimeLeft    int64  `json:"time_left"`
}

type statusView struct {
	State       string `json:"state"`
	Description string `json:"description"`
}

type jobView struct {
	Position string `json:"position"`
	Company  string `json:"company_name"`
}

type inventoryItem struct {
	ID       int `json:"ID"`
	Quantity int `json:"quantity"`
}

type bazaarItem struct {
	ID       int   `json:"ID"`
	UID      int64 `json:"UID"`
	Quantity int   `json:"quantity"`
	Price    int64 `json:"price"`
}

type marketListing struct {
	ID       int64 `json:"ID"`
	ItemID   int   `json:"item_id"`
	Quantity int   `json:"quantity"`
	Price    int64 `json:"price"`
}

type userResponse struct {
	Error *apiError `json:"error,omitempty"`

	MoneyOnhand int64           `json:"money_onhand"`
	Energy      barView         `json:"energy"`
	Nerve       barView         `json:"nerve"`
	Travel      travelView      `json:"travel"`
	Status      statusView      `json:"status"`
	Job         jobView         `json:"job"`
	JobPoints   int             `json:"jobpoints"`
	Inventory   []inventoryItem `json:"inventory"`
	Bazaar      []bazaarItem    `json:"bazaar"`
	ItemMarket  []marketListing `json:"itemmarket"`
}

// FetchSnapshot polls the user endpoint and normalizes the response into a
// Snapshot, including active market and bazaar listings.
func (c *Client) FetchSnapshot(ctx context.Context, accountID, apiKey string) (*models.Snapshot, error) {
	u, err := url.Parse(c.apiURL + "/user/" + accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("selections", "money,bars,travel,profile,jobpoints,inventory,bazaar,itemmarket")
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	var body userResponse
	if err := c.getJSON(ctx, u.String(), &body); err != nil {
		return nil, fmt.Errorf("failed to fetch user state: %w", err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("torn API error %d: %s", body.Error.Code, body.Error.Error)
	}

	snap := &models.Snapshot{
		AccountID: accountID,
		TakenAt:   time.Now(),
		Cash:      body.MoneyOnhand,
		Location:  locationFromStatus(body.Status),
		Energy:    body.Energy.Current,
		MaxEnergy: body.Energy.Maximum,
		Nerve:     body.Nerve.Current,
		MaxNerve:  body.Nerve.Maximum,
		JobPoints: body.JobPoints,
		Job:       jobLabel(body.Job),
	}
	if body.Travel.TimeLeft > 0 {
		snap.Travel = models.Travel{
			Destination: body.Travel.Destination,
			TimeLeft:    body.Travel.TimeLeft,
		}
	}
	if len(body.Inventory) > 0 {
		snap.Inventory = make(map[int]int, len(body.Inventory))
		for _, item := range body.Inventory {
			snap.Inventory[item.ID] += item.Quantity
		}
	}
	for _, b := range body.Bazaar {
		snap.Listings = append(snap.Listings, models.Listing{
			Source:    models.SourceBazaar,
			ListingID: b.UID,
			ItemID:    b.ID,
			UnitPrice: b.Price,
			Quantity:  b.Quantity,
		})
	}
	for _, m := range body.ItemMarket {
		snap.Listings = append(snap.Listings, models.Listing{
			Source:    models.SourceMarket,
			ListingID: m.ID,
			ItemID:    m.ItemID,
			UnitPrice: m.Price,
			Quantity:  m.Quantity,
		})
	}
	return snap, nil
}

// stockResponse mirrors the YATA travel export shape.
type stockResponse struct {
	Stocks map[string]countryStocks `json:"stocks"`
}

type countryStocks struct {
	Update int64        `json:"update"`
	Stocks []stockEntry `json:"stocks"`
}

type stockEntry struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Cost     int64  `json:"cost"`
	Quantity int    `json:"quantity"`
}

// countryNames maps the feed's short codes to the country names the Torn API
// reports in travel destinations.
var countryNames = map[string]string{
	"mex": "Mexico",
	"cay": "Cayman Islands",
	"can": "Canada",
	"haw": "Hawaii",
	"uni": "United Kingdom",
	"arg": "Argentina",
	"swi": "Switzerland",
	"jap": "Japan",
	"chi": "China",
	"uae": "UAE",
	"sou": "South Africa",
}

// FetchForeignStock retrieves the live foreign shop stock for every country,
// keyed by country name.
func (c *Client) FetchForeignStock(ctx context.Context) (map[string][]models.StockEntry, error) {
	var body stockResponse
	if err := c.getJSON(ctx, c.stockURL, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch foreign stock: %w", err)
	}

	stocks := make(map[string][]models.StockEntry, len(body.Stocks))
	for code, country := range body.Stocks {
		name, ok := countryNames[code]
		if !ok {
			name = code
		}
		entries := make([]models.StockEntry, 0, len(country.Stocks))
		for _, e := range country.Stocks {
			entries = append(entries, models.StockEntry{
				ItemID:    e.ID,
				Name:      e.Name,
				UnitPrice: e.Cost,
				Quantity:  e.Quantity,
			})
		}
		stocks[name] = entries
	}
	return stocks, nil
}

func locationFromStatus(status statusView) string {
	switch status.State {
	case "Abroad", "Hospital": // hospitalized abroad keeps the foreign location
		if country, ok := strings.CutPrefix(status.Description, "In "); ok {
			return strings.TrimSpace(country)
		}
		return models.HomeCity
	default:
		return models.HomeCity
	}
}

func jobLabel(job jobView) string {
	if job.Company == "" {
		return job.Position
	}
	return job.Position + " @ " + job.Company
}

// getJSON performs a GET with linear-backoff retry and decodes the body.
func (c *Client) getJSON(ctx context.Context, urlStr string, out any) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
