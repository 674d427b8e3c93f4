package vertopal

import "github.com/spiffcs/morph/internal/convert"

// apiResponse is the envelope shared by all API v1 endpoints. Error payloads
// appear either at the top level or under result.error; task output nests
// under result.output.
type apiResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Entity  entity `json:"entity"`
	Result  struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Output taskOutput `json:"output"`
	} `json:"result"`
}

type entity struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type taskOutput struct {
	Connector string `json:"connector"`
	Name      string `json:"name"`
	Entity    entity `json:"entity"`
	Result    *struct {
		Output struct {
			Status string `json:"status"`
		} `json:"output"`
	} `json:"result"`
}

// codeInputNotFound is the API error code for an upload connector the
// server no longer knows.
const codeInputNotFound = "FILE_NOT_EXISTS"

// apiError maps an error payload, if any, to the convert error taxonomy.
func (r *apiResponse) apiError() error {
	code, message := r.Code, r.Message
	if r.Result.Error.Code != "" {
		code, message = r.Result.Error.Code, r.Result.Error.Message
	}
	if code == "" {
		return nil
	}
	if code == codeInputNotFound {
		return convert.ErrInputNotFound
	}
	return &convert.RemoteError{Code: code, Message: message}
}
