package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	clientdomain "github.com/smallbiznis/identra/internal/client/domain"
)

type createClientRequest struct {
	ClientID        string   `json:"client_id" binding:"required"`
	ClientName      string   `json:"client_name"`
	ClientSecret    string   `json:"client_secret"`
	AuthMethods     []string `json:"auth_methods" binding:"required"`
	GrantTypes      []string `json:"grant_types" binding:"required"`
	RedirectURIs    []string `json:"redirect_uris"`
	Scopes          []string `json:"scopes"`
	RequireProofKey bool     `json:"require_proof_key"`
}

type clientResponse struct {
	ID              string   `json:"id"`
	ClientID        string   `json:"client_id"`
	ClientName      string   `json:"client_name"`
	AuthMethods     []string `json:"auth_methods"`
	GrantTypes      []string `json:"grant_types"`
	RedirectURIs    []string `json:"redirect_uris"`
	Scopes          []string `json:"scopes"`
	RequireProofKey bool     `json:"require_proof_key"`
}

func toClientResponse(client *clientdomain.RegisteredClient) clientResponse {
	methods := make([]string, 0, len(client.AuthMethods))
	for _, m := range client.AuthMethods {
		methods = append(methods, string(m))
	}
	grants := make([]string, 0, len(client.GrantTypes))
	for _, g := range client.GrantTypes {
		grants = append(grants, string(g))
	}
	return clientResponse{
		ID:              client.ID,
		ClientID:        client.ClientID,
		ClientName:      client.ClientName,
		AuthMethods:     methods,
		GrantTypes:      grants,
		RedirectURIs:    client.RedirectURIs,
		Scopes:          client.Scopes,
		RequireProofKey: client.RequireProofKey,
	}
}

func (s *Server) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, clientdomain.ErrInvalidRequest)
		return
	}

	methods := make([]clientdomain.AuthMethod, 0, len(req.AuthMethods))
	for _, m := range req.AuthMethods {
		methods = append(methods, clientdomain.AuthMethod(m))
	}
	grants := make([]clientdomain.GrantType, 0, len(req.GrantTypes))
	for _, g := range req.GrantTypes {
		grants = append(grants, clientdomain.GrantType(g))
	}

	created, err := s.clients.Create(c.Request.Context(), clientdomain.CreateClientRequest{
		ClientID:        req.ClientID,
		ClientName:      req.ClientName,
		ClientSecret:    req.ClientSecret,
		AuthMethods:     methods,
		GrantTypes:      grants,
		RedirectURIs:    req.RedirectURIs,
		Scopes:          req.Scopes,
		RequireProofKey: req.RequireProofKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClientResponse(created))
}

func (s *Server) GetClient(c *gin.Context) {
	client, err := s.clients.Resolve(c.Request.Context(), c.Param("client_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(client))
}
