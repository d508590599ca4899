package metrics

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// HertzHandler serves the collector on a Hertz route. The promhttp handler
// runs against net/http views of the Hertz request and response.
func (c *Collector) HertzHandler() app.HandlerFunc {
	handler := c.Handler()
	return func(ctx context.Context, rc *app.RequestContext) {
		req, err := adaptor.GetCompatRequest(&rc.Request)
		if err != nil {
			rc.String(consts.StatusInternalServerError, "metrics: %v", err)
			return
		}
		handler.ServeHTTP(adaptor.GetCompatResponseWriter(&rc.Response), req.WithContext(ctx))
	}
}
