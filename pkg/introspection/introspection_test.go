package introspection

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
)

type fakeSource struct {
	agreements map[string]registry.AgreementRef
}

func (f *fakeSource) GetAgreementMap() map[string]registry.AgreementRef { return f.agreements }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAgreements_ReturnsCurrentMap(t *testing.T) {
	router := NewRouter(&fakeSource{agreements: map[string]registry.AgreementRef{
		"agr-1": {StackID: "stack-1", EventName: "cpu_high"},
	}}, "")

	req := httptest.NewRequest(http.MethodGet, "/agreements", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]agreementView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "stack-1", got["agr-1"].StackID)
}

func TestCatchAll_ReturnsStaticMessage(t *testing.T) {
	router := NewRouter(&fakeSource{agreements: map[string]registry.AgreementRef{}}, "")

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Adaptation Engine")
}

func TestCatchAll_UsesConfiguredBanner(t *testing.T) {
	router := NewRouter(&fakeSource{agreements: map[string]registry.AgreementRef{}}, "custom banner")

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "custom banner")
}
