// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/innovationmech/sagaflow/internal/sagaflow/sagas"
	"github.com/innovationmech/sagaflow/pkg/saga"
)

// actorHeader carries the identity starting or stopping a saga.
const actorHeader = "X-Actor"

// API exposes the saga admin surface: starting sagas, audit reads, and
// force-stop.
type API struct {
	service *saga.Service
	pen     *sagas.PenRequestSaga
	profile *sagas.ProfileRequestSaga
	log     *zap.Logger
}

// NewAPI builds the admin API over the wired saga components.
func NewAPI(service *saga.Service, pen *sagas.PenRequestSaga, profile *sagas.ProfileRequestSaga, log *zap.Logger) *API {
	return &API{service: service, pen: pen, profile: profile, log: log}
}

// RegisterRoutes attaches the API to the router.
func (a *API) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	v1.POST("/pen-request-saga", a.startPenRequestSaga)
	v1.POST("/student-profile-saga", a.startProfileRequestSaga)
	v1.GET("/sagas", a.listSagas)
	v1.GET("/sagas/:id", a.getSaga)
	v1.GET("/sagas/:id/events", a.getSagaEvents)
	v1.POST("/sagas/:id/force-stop", a.forceStopSaga)
}

func actor(c *gin.Context) string {
	if v := c.GetHeader(actorHeader); v != "" {
		return v
	}
	return "SAGA_API"
}

func (a *API) startPenRequestSaga(c *gin.Context) {
	var payload sagas.PenRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sg, err := a.pen.Start(c.Request.Context(), &payload, actor(c))
	a.respondStart(c, sg, err)
}

func (a *API) startProfileRequestSaga(c *gin.Context) {
	var payload sagas.ProfileRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sg, err := a.profile.Start(c.Request.Context(), &payload, actor(c))
	a.respondStart(c, sg, err)
}

func (a *API) respondStart(c *gin.Context, sg *saga.Saga, err error) {
	switch {
	case errors.Is(err, saga.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, saga.ErrSagaConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		a.log.Error("saga start failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saga start failed"})
	default:
		c.JSON(http.StatusCreated, sg)
	}
}

func (a *API) listSagas(c *gin.Context) {
	filter := &saga.Filter{
		SagaName:      c.Query("sagaName"),
		CorrelationID: c.Query("correlationId"),
		SortBy:        c.Query("sortBy"),
		SortDesc:      c.Query("sortOrder") == "desc",
	}
	if s := c.Query("status"); s != "" {
		filter.Statuses = []saga.Status{saga.Status(s)}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("createdAfter"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedAfter = &ts
		}
	}
	if v := c.Query("createdBefore"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedBefore = &ts
		}
	}

	rows, total, err := a.service.List(c.Request.Context(), filter)
	if err != nil {
		a.log.Error("saga list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saga list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "total": total})
}

func (a *API) getSaga(c *gin.Context) {
	sg, err := a.service.GetSaga(c.Request.Context(), c.Param("id"))
	if errors.Is(err, saga.ErrSagaNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		a.log.Error("saga read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saga read failed"})
		return
	}
	c.JSON(http.StatusOK, sg)
}

func (a *API) getSagaEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := a.service.GetSaga(c.Request.Context(), id); err != nil {
		if errors.Is(err, saga.ErrSagaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		a.log.Error("saga read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saga read failed"})
		return
	}
	events, err := a.service.GetSagaEvents(c.Request.Context(), id)
	if err != nil {
		a.log.Error("saga events read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saga events read failed"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// forceStopSaga terminalizes one saga through its owning engine so the stop
// broadcast goes out on the right topic.
func (a *API) forceStopSaga(c *gin.Context) {
	id := c.Param("id")
	sg, err := a.service.GetSaga(c.Request.Context(), id)
	if errors.Is(err, saga.ErrSagaNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		a.log.Error("saga read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saga read failed"})
		return
	}

	var stopErr error
	switch sg.SagaName {
	case sagas.PenRequestSagaName:
		stopErr = a.pen.Engine().ForceStop(c.Request.Context(), id, actor(c))
	case sagas.ProfileRequestSagaName:
		stopErr = a.profile.Engine().ForceStop(c.Request.Context(), id, actor(c))
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no engine for saga " + sg.SagaName})
		return
	}
	if stopErr != nil {
		a.log.Error("force stop failed", zap.String("sagaId", id), zap.Error(stopErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "force stop failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
