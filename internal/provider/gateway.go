package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"topup/internal/config"
	"topup/internal/money"
)

var ErrNoRoute = errors.New("no provider configured for route")

// Gateway submits delivery orders and normalizes whatever comes back into a
// canonical Result. A provider's business-level failure is a Failed Result,
// not an error; errors are reserved for this system's own misconfiguration.
type Gateway struct {
	providers *config.Registry
	client    *http.Client
}

func NewGateway(providers *config.Registry, client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Gateway{providers: providers, client: client}
}

func (g *Gateway) Submit(ctx context.Context, req Request) (Result, error) {
	prov, ok := g.providers.Lookup(req.Network, req.Service)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s/%s", ErrNoRoute, req.Network, req.Service)
	}

	body, err := json.Marshal(buildBody(req))
	if err != nil {
		return Result{}, err
	}
	callCtx := ctx
	if prov.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, prov.Timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, prov.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setAuthHeader(httpReq, prov)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// A timeout is ambiguous: the order may have reached the provider.
		// A refused connection cannot have.
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			log.Printf("provider %s timed out on ref %s", prov.Name, req.Reference)
			return Result{Outcome: Processing, Message: "provider timeout"}, nil
		}
		log.Printf("provider %s transport error on ref %s: %v", prov.Name, req.Reference, err)
		return Result{Outcome: Failed, Message: "provider unreachable"}, nil
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Outcome: Processing, Message: "provider response truncated", HTTPStatus: resp.StatusCode}, nil
	}

	result := Result{HTTPStatus: resp.StatusCode, Raw: raw}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Outcome = Failed
		result.Message = fmt.Sprintf("provider returned HTTP %d", resp.StatusCode)
		// Some providers answer validation failures with 4xx and a message
		// worth surfacing to the caller.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			if detail := validationDetail(raw); detail != "" {
				result.Message = detail
			}
		}
		return result, nil
	}

	outcome, message := interpreterFor(prov.Name)(raw)
	result.Outcome = outcome
	result.Message = message
	return result, nil
}

// buildBody lays out the JSON the upstream APIs expect: network, a
// service-appropriate destination key, plan or amount, and the reference.
func buildBody(req Request) map[string]any {
	body := map[string]any{
		"network": req.Network,
		"ref":     req.Reference,
	}
	switch req.Service {
	case "electricity":
		body["meter_number"] = req.Destination
		body["meter_type"] = req.MeterType
	case "cable":
		body["iuc"] = req.Destination
	default:
		body["mobile_number"] = req.Destination
	}
	if req.PlanCode != "" {
		body["plan"] = req.PlanCode
	}
	if req.Amount > 0 {
		body["amount"] = money.FormatMajor(req.Amount)
	}
	return body
}

// Auth header shape is provider identity, not response shape.
func setAuthHeader(req *http.Request, prov config.Provider) {
	switch prov.AuthStyle {
	case config.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+prov.APIKey)
	default:
		req.Header.Set("Authorization", "Token "+prov.APIKey)
	}
}

func validationDetail(raw []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if detail := textField(payload, "message", "error", "detail"); detail != "" {
		return detail
	}
	// Field-level errors arrive as {"field": ["problem"]}.
	for field, value := range payload {
		if list, ok := value.([]any); ok && len(list) > 0 {
			if text, ok := list[0].(string); ok {
				return field + ": " + text
			}
		}
	}
	return ""
}
