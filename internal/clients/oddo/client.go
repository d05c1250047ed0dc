// Package oddo provides the client for the upstream brokerage API.
package oddo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"oddogate/internal/config"
	"oddogate/internal/domain"
)

// Client talks to the upstream brokerage API. It holds no session
// state; credentials travel in the domain.Session passed to each call.
type Client struct {
	baseURL    string
	culture    string
	httpClient *http.Client
	clock      clockwork.Clock
	log        zerolog.Logger
}

// NewClient creates a new upstream API client.
func NewClient(cfg config.OddoConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		culture:    cfg.Culture,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		clock:      clockwork.NewRealClock(),
		log:        log.With().Str("client", "oddo").Logger(),
	}
}

// SetClock replaces the clock used for business-day defaults (tests).
func (c *Client) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

type loginRequest struct {
	UserName string  `json:"UserName"`
	Password string  `json:"Password"`
	SmsCode  *string `json:"SmsCode"`
	Culture  string  `json:"culture"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates against the upstream API. The session token
// comes from the response body, the session UUID from the X-UUID
// header.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Session, error) {
	body, err := json.Marshal(loginRequest{
		UserName: username,
		Password: password,
		Culture:  c.culture,
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/core/Login", bytes.NewReader(body))
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("Login rejected by upstream")
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Session{}, fmt.Errorf("failed to decode login response: %w", err)
	}
	if parsed.Token == "" {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	return domain.Session{
		Username: username,
		Token:    parsed.Token,
		UUID:     resp.Header.Get("X-UUID"),
	}, nil
}

type findAccountsRequest struct {
	CodeBureau     string   `json:"CodeBureau"`
	SelectedFields []string `json:"selectedFields"`
	Culture        string   `json:"culture"`
}

type findAccountsResponse struct {
	AccountsTiers struct {
		PrincipalsAccounts []rawAccount `json:"principalsAccounts"`
	} `json:"accountsTiers"`
}

type rawAccount struct {
	AccountNum   string  `json:"accountNum"`
	Libelle      string  `json:"libelle"`
	Valorisation float64 `json:"valorisation"`
}

// GetAccounts lists the accounts visible to the session's login.
func (c *Client) GetAccounts(ctx context.Context, session domain.Session) ([]domain.Account, error) {
	payload := findAccountsRequest{
		SelectedFields: []string{
			"valorisation",
			"performance",
			"especes",
			"securityAccountProviderLabel",
			"libelle",
			"CodFront",
		},
		Culture: c.culture,
	}

	var parsed findAccountsResponse
	if err := c.do(ctx, session, "/accounts/FindLoginAccounts", payload, &parsed); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(parsed.AccountsTiers.PrincipalsAccounts))
	for _, raw := range parsed.AccountsTiers.PrincipalsAccounts {
		accounts = append(accounts, domain.Account{
			AccountNumber: raw.AccountNum,
			Label:         raw.Libelle,
			Value:         raw.Valorisation,
		})
	}
	return accounts, nil
}

type findPositionsRequest struct {
	Index       int      `json:"i"`
	PageSize    int      `json:"p"`
	SortField   string   `json:"sf"`
	SortDir     string   `json:"sd"`
	CodeBureau  string   `json:"CodeBureau"`
	AccountNums []string `json:"AccountNums"`
	Type        int      `json:"Type"`
	ArreteAu    string   `json:"ArreteAu"`
	Culture     string   `json:"culture"`
}

type findPositionsResponse struct {
	Values []rawPosition `json:"values"`
}

// rawPosition is the upstream position line. The upstream calls the
// performance field "perf"; the outward DTO renames it.
type rawPosition struct {
	ISINCode                      string  `json:"isinCode"`
	LibInstrument                 string  `json:"libInstrument"`
	ValorisationAchatNette        float64 `json:"valorisationAchatNette"`
	ValeurMarcheDeviseSecurite    float64 `json:"valeurMarcheDeviseSecurite"`
	DateArrete                    string  `json:"dateArrete"`
	QuantityMinute                float64 `json:"quantityMinute"`
	PMVL                          float64 `json:"pmvl"`
	PMVR                          float64 `json:"pmvr"`
	WeightMinute                  float64 `json:"weightMinute"`
	ReportingAssetClassCode       string  `json:"reportingAssetClassCode"`
	Perf                          float64 `json:"perf"`
	ClassActif                    string  `json:"classActif"`
	ClosingPriceInListingCurrency float64 `json:"closingPriceInListingCurrency"`
}

// GetPositions fetches the position lines of one account, valued at
// asOf (YYYY-MM-DD). An empty asOf defaults to the last business day.
func (c *Client) GetPositions(ctx context.Context, session domain.Session, accountNumber, asOf string) ([]domain.Position, error) {
	if asOf == "" {
		asOf = c.lastBusinessDay()
	}

	payload := findPositionsRequest{
		PageSize:    10,
		AccountNums: []string{accountNumber},
		Type:        3,
		ArreteAu:    asOf,
		Culture:     c.culture,
	}

	var parsed findPositionsResponse
	if err := c.do(ctx, session, "/accounts/FindAccountsPositions", payload, &parsed); err != nil {
		return nil, fmt.Errorf("failed to fetch positions for account %s: %w", accountNumber, err)
	}

	positions := make([]domain.Position, 0, len(parsed.Values))
	for _, raw := range parsed.Values {
		positions = append(positions, c.transformPosition(raw))
	}
	return positions, nil
}

func (c *Client) transformPosition(raw rawPosition) domain.Position {
	return domain.Position{
		ISINCode:                      raw.ISINCode,
		LibInstrument:                 raw.LibInstrument,
		ValorisationAchatNette:        raw.ValorisationAchatNette,
		ValeurMarcheDeviseSecurite:    raw.ValeurMarcheDeviseSecurite,
		DateArrete:                    c.parseDateArrete(raw.DateArrete),
		QuantityMinute:                raw.QuantityMinute,
		PMVL:                          raw.PMVL,
		PMVR:                          raw.PMVR,
		WeightMinute:                  raw.WeightMinute,
		ReportingAssetClassCode:       raw.ReportingAssetClassCode,
		Performance:                   raw.Perf,
		ClassActif:                    raw.ClassActif,
		ClosingPriceInListingCurrency: raw.ClosingPriceInListingCurrency,
	}
}

// parseDateArrete normalizes the upstream date string; unparseable or
// missing dates fall back to the current time.
func (c *Client) parseDateArrete(value string) domain.DateArrete {
	if value != "" {
		for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				return domain.DateArrete{Time: t}
			}
		}
	}
	return domain.DateArrete{Time: c.clock.Now()}
}

// lastBusinessDay returns the most recent weekday before today.
func (c *Client) lastBusinessDay() string {
	day := c.clock.Now()
	for {
		day = day.AddDate(0, 0, -1)
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			return day.Format("2006-01-02")
		}
	}
}

// do sends an authenticated POST and decodes the JSON response into
// out. A 401 surfaces as domain.ErrUnauthorized so handlers can tell
// an expired session from an upstream outage.
func (c *Client) do(ctx context.Context, session domain.Session, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Token", session.Token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if session.UUID != "" {
		req.Header.Set("X-UUID", session.UUID)
	}

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", c.clock.Since(start)).
		Msg("Upstream request completed")

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
