package api

import (
	"github.com/gin-gonic/gin"
)

type listAssetsResponse struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"displayName"`
	Currency    string `json:"currency"`
	DataSource  string `json:"dataSource"`
	DataSymbol  string `json:"dataSymbol,omitempty"`
}

func (m ApiHandler) listAssets(c *gin.Context) {
	out := []listAssetsResponse{}
	for _, a := range m.AssetRegistry.List() {
		out = append(out, listAssetsResponse{
			Symbol:      a.Symbol,
			DisplayName: a.DisplayName(),
			Currency:    a.Currency,
			DataSource:  a.DataSource,
			DataSymbol:  a.DataSymbol,
		})
	}

	c.JSON(200, out)
}
