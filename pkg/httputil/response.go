// Package httputil provides HTTP response utilities for consistent JSON
// encoding and structured denial bodies.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/lnkday/authcore/pkg/authz"
	"github.com/lnkday/authcore/pkg/principal"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// DenialBody is the wire shape of an authorization denial. It carries
// the machine-readable code and permission lists clients use to drive
// progressive disclosure, but never internal resource details.
type DenialBody struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message,omitempty"`
	Required  []string                `json:"required,omitempty"`
	Missing   []string                `json:"missing,omitempty"`
	Condition *authz.ConditionFailure `json:"condition,omitempty"`
}

// WriteDenial writes an authorization failure. Policy misconfigurations
// are masked as opaque server errors so deployment details never leak.
func WriteDenial(w http.ResponseWriter, err error) {
	denial := authz.AsError(err)

	if denial.Code == authz.CodePolicyMisconfigured {
		WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	body := DenialBody{
		Error:     string(denial.Code),
		Message:   denial.Message,
		Required:  permissionStrings(denial.Required),
		Missing:   permissionStrings(denial.Missing),
		Condition: denial.Condition,
	}
	WriteJSON(w, denial.HTTPStatus(), body)
}

func permissionStrings(perms []principal.Permission) []string {
	if len(perms) == 0 {
		return nil
	}
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
