package wire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dreamware/cachecluster/internal/errs"
)

// Call POSTs a msgpack-encoded req to addr+path and decodes the response
// body into resp, generalizing the teacher's PostJSON/GetJSON helpers
// (internal/cluster) to the binary wire format. A non-2xx response is
// decoded as an ErrorBody and surfaced as an *errs.Error carrying the
// remote Kind, so callers can branch on retriability without inspecting
// HTTP status codes directly.
func Call(ctx context.Context, client *http.Client, addr, path string, req, resp any) error {
	body, err := Marshal(req)
	if err != nil {
		return errs.New(errs.KindInvalidInput, "wire.Call", fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+path, bytes.NewReader(body))
	if err != nil {
		return errs.New(errs.KindInternal, "wire.Call", fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", ContentType)

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return errs.New(errs.KindConnectionError, "wire.Call", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errs.New(errs.KindConnectionError, "wire.Call", fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode >= 300 {
		var eb ErrorBody
		if decodeErr := Unmarshal(respBody, &eb); decodeErr != nil {
			return errs.New(errs.KindInternal, "wire.Call",
				fmt.Errorf("status %d, undecodable body: %w", httpResp.StatusCode, decodeErr))
		}
		return errs.New(errs.Kind(eb.Kind), eb.Op, fmt.Errorf("%s", eb.Message))
	}

	if err := Unmarshal(respBody, resp); err != nil {
		return errs.New(errs.KindInternal, "wire.Call", fmt.Errorf("decode response: %w", err))
	}
	return nil
}
