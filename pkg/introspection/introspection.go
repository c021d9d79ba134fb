// Package introspection implements component I: a read-only gin HTTP
// server exposing the engine's agreement map, grounded in the teacher's
// cmd/tarsy/main.go gin wiring (spec.md §4.I — "no mutation, no auth").
package introspection

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
)

// AgreementSource supplies the current agreement->stack map.
type AgreementSource interface {
	GetAgreementMap() map[string]registry.AgreementRef
}

// agreementView is the JSON shape returned by GET /agreements.
type agreementView struct {
	StackID   string `json:"stack_id"`
	EventName string `json:"event_name"`
}

// NewRouter builds the introspection HTTP router. banner is the catch-all
// message returned by the NoRoute handler (spec.md §4.I); an empty banner
// falls back to "Adaptation Engine".
func NewRouter(source AgreementSource, banner string) *gin.Engine {
	if banner == "" {
		banner = "Adaptation Engine"
	}

	router := gin.Default()

	router.GET("/agreements", func(c *gin.Context) {
		refs := source.GetAgreementMap()
		out := make(map[string]agreementView, len(refs))
		for agreementID, ref := range refs {
			out[agreementID] = agreementView{StackID: ref.StackID, EventName: ref.EventName}
		}
		c.JSON(http.StatusOK, out)
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": banner})
	})

	return router
}
