package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	apperr "risklock/internal/errors"
	"risklock/internal/models"
)

// ReportFormat is the export format of a risk report.
type ReportFormat string

const (
	ReportPDF ReportFormat = "pdf"
	ReportCSV ReportFormat = "csv"
)

// ParseReportFormat validates a report format name.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(s)) {
	case ReportPDF:
		return ReportPDF, nil
	case ReportCSV:
		return ReportCSV, nil
	}
	return "", apperr.NewValidationError("format", s, "must be pdf or csv")
}

// Login exchanges credentials for a bearer token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	_, err := c.do(ctx, http.MethodPost, PathLogin, func(r *resty.Request) {
		r.SetFormData(map[string]string{
			"username": username,
			"password": password,
		})
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", apperr.NewAPIError(http.MethodPost, PathLogin, http.StatusOK, "response carried no access token", nil)
	}
	c.SetToken(out.AccessToken)
	return out.AccessToken, nil
}

// GetOverview fetches the account/risk snapshot.
func (c *Client) GetOverview(ctx context.Context) (models.Snapshot, error) {
	var s models.Snapshot
	if _, err := c.do(ctx, http.MethodGet, PathOverview, nil, &s); err != nil {
		return models.Snapshot{}, err
	}
	if err := s.Validate(); err != nil {
		return models.Snapshot{}, apperr.NewAPIError(http.MethodGet, PathOverview, http.StatusOK, "invalid snapshot", err)
	}
	return s, nil
}

// GetTrades fetches the open trade list.
func (c *Client) GetTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	if _, err := c.do(ctx, http.MethodGet, PathTrades, nil, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// GetPortfolio fetches the aggregate over every connected account.
func (c *Client) GetPortfolio(ctx context.Context) (models.Portfolio, error) {
	var p models.Portfolio
	if _, err := c.do(ctx, http.MethodGet, PathPortfolio, nil, &p); err != nil {
		return models.Portfolio{}, err
	}
	return p, nil
}

// ToggleDemoMode switches simulated risk violations on the mock account and
// returns the mode the service acknowledged.
func (c *Client) ToggleDemoMode(ctx context.Context, enabled bool) (bool, error) {
	var out struct {
		DemoMode bool `json:"demo_mode"`
	}
	_, err := c.do(ctx, http.MethodPost, PathToggleDemo, func(r *resty.Request) {
		r.SetQueryParam("enabled", strconv.FormatBool(enabled))
	}, &out)
	if err != nil {
		return false, err
	}
	return out.DemoMode, nil
}

// GetBrokers lists the connected broker accounts.
func (c *Client) GetBrokers(ctx context.Context) ([]models.Broker, error) {
	var brokers []models.Broker
	if _, err := c.do(ctx, http.MethodGet, PathBrokers, nil, &brokers); err != nil {
		return nil, err
	}
	return brokers, nil
}

// GetPresets fetches the prop firm rule presets by name.
func (c *Client) GetPresets(ctx context.Context) (models.Presets, error) {
	var out models.Presets
	if _, err := c.do(ctx, http.MethodGet, PathPresets, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConnectBroker links a broker account and makes it the active one.
func (c *Client) ConnectBroker(ctx context.Context, in models.BrokerConnectInput) (models.Broker, error) {
	if err := in.Validate(); err != nil {
		return models.Broker{}, err
	}
	var out models.Broker
	_, err := c.do(ctx, http.MethodPost, PathBrokerConnect, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(in)
	}, &out)
	if err != nil {
		return models.Broker{}, err
	}
	return out, nil
}

// UpdateRiskSettings changes the risk rules of one broker account.
func (c *Client) UpdateRiskSettings(ctx context.Context, brokerID int64, u models.RiskSettingsUpdate) (models.Broker, error) {
	if err := u.Validate(); err != nil {
		return models.Broker{}, err
	}
	var out models.Broker
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf(PathRiskSettings, brokerID), func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(u)
	}, &out)
	if err != nil {
		return models.Broker{}, err
	}
	return out, nil
}

// CreateFeedback submits an idea or complaint.
func (c *Client) CreateFeedback(ctx context.Context, in models.FeedbackInput) (models.Feedback, error) {
	if err := in.Validate(); err != nil {
		return models.Feedback{}, err
	}
	var out models.Feedback
	_, err := c.do(ctx, http.MethodPost, PathFeedback, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(in)
	}, &out)
	if err != nil {
		return models.Feedback{}, err
	}
	return out, nil
}

// GetUserFeedback lists the caller's own feedback.
func (c *Client) GetUserFeedback(ctx context.Context) ([]models.Feedback, error) {
	var out []models.Feedback
	if _, err := c.do(ctx, http.MethodGet, PathFeedback, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAllFeedback lists feedback of every user. Admin only.
func (c *Client) GetAllFeedback(ctx context.Context) ([]models.Feedback, error) {
	var out []models.Feedback
	if _, err := c.do(ctx, http.MethodGet, PathFeedbackAll, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFeedback changes status or admin notes of a record. Admin only.
func (c *Client) UpdateFeedback(ctx context.Context, id int64, u models.FeedbackUpdate) (models.Feedback, error) {
	if err := u.Validate(); err != nil {
		return models.Feedback{}, err
	}
	var out models.Feedback
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf(PathFeedbackAdmin, id), func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(u)
	}, &out)
	if err != nil {
		return models.Feedback{}, err
	}
	return out, nil
}

// DownloadReport fetches a generated report as raw bytes.
func (c *Client) DownloadReport(ctx context.Context, accountID string, format ReportFormat) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, PathReport, func(r *resty.Request) {
		r.SetHeader("Accept", "*/*").
			SetQueryParams(map[string]string{
				"account_id": accountID,
				"format":     string(format),
			})
	}, nil)
	if err != nil {
		return nil, err
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, apperr.NewAPIError(http.MethodGet, PathReport, resp.StatusCode(), "empty report", apperr.ErrEmptyReport)
	}
	return body, nil
}
