// internal/adapters/gto/client.go
package gto

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"gto_dupfinder/internal/adapters/observability"
	"gto_dupfinder/internal/domain"
)

const (
	DefaultRPS = 5.0
	MaxRPS     = 50.0

	maxAttempts = 4
)

var ErrNoAPIKey = errors.New("gto: API key is required")

// Client wraps the paginated GTO catalog API behind a shared token bucket
// and a bounded retry policy. One Client is the sole admission-control point
// for every outbound call in the process.
type Client struct {
	base  string
	hc    *http.Client
	key   string
	rl    *rate.Limiter
	stats *Stats
}

func New(base, key string, rps float64) (*Client, error) {
	if key == "" {
		return nil, ErrNoAPIKey
	}
	rps = clampRPS(rps)
	return &Client{
		base:  strings.TrimRight(base, "/"),
		hc:    &http.Client{Timeout: 30 * time.Second},
		key:   key,
		rl:    rate.NewLimiter(rate.Limit(rps), burstFor(rps)),
		stats: &Stats{},
	}, nil
}

func clampRPS(rps float64) float64 {
	if rps <= 0 {
		return DefaultRPS
	}
	if rps > MaxRPS {
		return MaxRPS
	}
	return rps
}

func burstFor(rps float64) int { return int(math.Ceil(rps)) }

// SetRate retunes the shared bucket for a newly requested scan rate.
// Refill is continuous (fractional tokens), so the observed rate converges
// to the configured value.
func (c *Client) SetRate(rps float64) {
	rps = clampRPS(rps)
	c.rl.SetLimit(rate.Limit(rps))
	c.rl.SetBurst(burstFor(rps))
}

func (c *Client) Stats() domain.UpstreamStats { return c.stats.Snapshot() }

// ---- Endpoints ----

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) Countries(ctx context.Context) ([]domain.Country, error) {
	var all []domain.Country
	page := 1
	const perPage = 500
	for {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(perPage))
		var out []domain.Country
		if err := c.get(ctx, "countries", "/countries", q, &out); err != nil {
			return nil, err
		}
		all = append(all, out...)
		if len(out) < perPage {
			break
		}
		page++
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
	})
	return all, nil
}

func (c *Client) Cities(ctx context.Context, countryID int64) ([]domain.City, error) {
	q := url.Values{}
	q.Set("country_id", strconv.FormatInt(countryID, 10))
	q.Set("per_page", "1000")
	var out []domain.City
	if err := c.get(ctx, "cities", "/cities", q, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// hotelPayload tolerates the catalog's loose typing: coordinates arrive as
// numbers, numeric strings, or not at all.
type hotelPayload struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  optFloat `json:"latitude"`
	Longitude optFloat `json:"longitude"`
	Stars     *int     `json:"stars"`
	CityID    int64    `json:"city_id"`
	CountryID int64    `json:"country_id"`
}

func (c *Client) HotelsPage(ctx context.Context, cityID int64, countryID *int64, page, perPage int) ([]domain.HotelRecord, error) {
	q := url.Values{}
	q.Set("city_id", strconv.FormatInt(cityID, 10))
	if countryID != nil {
		q.Set("country_id", strconv.FormatInt(*countryID, 10))
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var raw []hotelPayload
	if err := c.get(ctx, "hotels", "/hotels", q, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.HotelRecord, 0, len(raw))
	for _, h := range raw {
		rec := domain.HotelRecord{
			ID:        h.ID,
			Name:      h.Name,
			Address:   h.Address,
			Lat:       h.Latitude.v,
			Lon:       h.Longitude.v,
			Stars:     h.Stars,
			CityID:    h.CityID,
			CountryID: h.CountryID,
		}
		if rec.CityID == 0 {
			rec.CityID = cityID
		}
		out = append(out, rec)
	}
	return out, nil
}

type detailPayload struct {
	Site  string `json:"site"`
	Phone string `json:"phone"`
}

func (c *Client) HotelDetail(ctx context.Context, hotelID int64) (domain.HotelDetail, error) {
	q := url.Values{}
	q.Set("hotel_id", strconv.FormatInt(hotelID, 10))
	var raw detailPayload
	if err := c.get(ctx, "hotel_info", "/hotel_info", q, &raw); err != nil {
		return domain.HotelDetail{}, err
	}
	return domain.HotelDetail{
		HotelID: hotelID,
		Site:    strings.TrimSpace(raw.Site),
		Phone:   strings.TrimSpace(raw.Phone),
	}, nil
}

// ---- Internals ----

// get performs a rate-limited GET, retrying 429/5xx/transport failures with
// exponential backoff, and decodes the "data" envelope into out. Any other
// 4xx is final for the call.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	q.Set("apikey", c.key)
	u := c.base + path + "?" + q.Encode()

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "gto-dupfinder/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		dur := time.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.stats.Observe(dur)
			observability.ObserveExternal(endpoint, 0, dur)
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		c.stats.Observe(dur)
		observability.ObserveExternal(endpoint, resp.StatusCode, dur)

		switch {
		case resp.StatusCode == http.StatusOK:
			var env envelope
			err := json.NewDecoder(resp.Body).Decode(&env)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("gto: decode %s: %w", endpoint, err)
			}
			if len(env.Data) == 0 {
				return nil
			}
			return json.Unmarshal(env.Data, out)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("gto: remote %d on %s", resp.StatusCode, endpoint)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("gto: %s status %d: %w", endpoint, resp.StatusCode, domain.ErrUnauthorized)

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return fmt.Errorf("gto: %s: %w", endpoint, domain.ErrNotFound)

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("gto: bad status %d on %s: %s", resp.StatusCode, endpoint, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}

// optFloat decodes a JSON number or numeric string; anything else is absent.
type optFloat struct{ v *float64 }

func (o *optFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil // tolerate malformed coordinates, treat as missing
	}
	o.v = &f
	return nil
}
