package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"supplies-portal/internal/platform/httpclient"
)

const DefaultAPIURL = "https://sheets.googleapis.com"

// TokenProvider supplies OAuth bearer tokens.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client calls the handful of Sheets endpoints the store needs.
type Client struct {
	http          *httpclient.Client
	tokens        TokenProvider
	spreadsheetID string
}

func NewClient(http *httpclient.Client, tokens TokenProvider, spreadsheetID string) *Client {
	return &Client{http: http, tokens: tokens, spreadsheetID: spreadsheetID}
}

type spreadsheetResponse struct {
	Sheets []struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

// SheetTitles lists the worksheet titles in tab order.
func (c *Client) SheetTitles(ctx context.Context) ([]string, error) {
	var resp spreadsheetResponse
	path := fmt.Sprintf("/v4/spreadsheets/%s?fields=%s",
		url.PathEscape(c.spreadsheetID), url.QueryEscape("sheets.properties.title"))
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		titles = append(titles, s.Properties.Title)
	}
	return titles, nil
}

// Values returns every populated cell of a worksheet as strings.
func (c *Client) Values(ctx context.Context, title string) ([][]string, error) {
	var resp valueRange
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?majorDimension=ROWS",
		url.PathEscape(c.spreadsheetID), url.PathEscape(quoteTitle(title)))
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		line := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				line[j] = fmt.Sprint(v)
			}
		}
		out[i] = line
	}
	return out, nil
}

// Update overwrites the worksheet starting at A1 in a single request.
func (c *Client) Update(ctx context.Context, title string, values [][]string) error {
	rng := quoteTitle(title) + "!A1"
	body := valueRange{Range: rng, MajorDimension: "ROWS", Values: make([][]any, len(values))}
	for i, row := range values {
		line := make([]any, len(row))
		for j, v := range row {
			line[j] = v
		}
		body.Values[i] = line
	}

	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		url.PathEscape(c.spreadsheetID), url.PathEscape(rng))
	return c.call(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	return c.http.DoJSON(ctx, method, path, headers, in, out)
}

// quoteTitle renders a worksheet title as an A1 sheet reference.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
