/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	model2 "github.com/jerry-enebeli/offline/api/model"
	"github.com/jerry-enebeli/offline/internal/apierror"
	"github.com/jerry-enebeli/offline/model"
)

func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": apierror.Body(err)})
}

func (a Api) GetActions(c *gin.Context) {
	status := c.Query("status")
	if err := model2.ValidateStatus(status); err != nil {
		respondError(c, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil))
		return
	}

	queue := a.offline.Queue()
	if status != "" {
		c.JSON(http.StatusOK, queue.GetActionsByStatus(model.ActionStatus(status)))
		return
	}
	c.JSON(http.StatusOK, queue.GetQueue())
}

func (a Api) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.offline.Queue().Stats())
}

func (a Api) GetAction(c *gin.Context) {
	id := c.Param("id")
	action, ok := a.offline.Queue().GetAction(id)
	if !ok {
		respondError(c, apierror.NotFound("action", id))
		return
	}
	c.JSON(http.StatusOK, action)
}

func (a Api) EnqueueAction(c *gin.Context) {
	var req model2.EnqueueAction
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierror.NewAPIError(apierror.ErrBadRequest, "invalid request body", err.Error()))
		return
	}
	if err := req.ValidateEnqueueAction(); err != nil {
		respondError(c, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil))
		return
	}

	queue := a.offline.Queue()
	id := queue.Enqueue(queueContext(c), req.Type, req.Endpoint, req.Payload, req.Method, req.ToOptions())

	// the action is gone already when a full queue dropped it
	action, ok := queue.GetAction(id)
	if !ok {
		c.JSON(http.StatusCreated, gin.H{"id": id})
		return
	}
	c.JSON(http.StatusCreated, action)
}

func (a Api) DequeueAction(c *gin.Context) {
	id := c.Param("id")
	if !a.offline.Queue().Dequeue(queueContext(c), id) {
		respondError(c, apierror.NotFound("action", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

func (a Api) ClearActions(c *gin.Context) {
	scope, err := model2.ParseClearScope(c.Query("scope"))
	if err != nil {
		respondError(c, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil))
		return
	}

	ctx := queueContext(c)
	queue := a.offline.Queue()
	var removed int
	switch scope {
	case model2.ScopeFailed:
		removed = queue.ClearFailed(ctx)
	case model2.ScopeAll:
		removed = queue.ClearAll(ctx)
	default:
		removed = queue.ClearSynced(ctx)
	}
	c.JSON(http.StatusOK, gin.H{"scope": scope, "removed": removed})
}

// queueContext carries the request's values without its cancellation. Queue mutations
// run to completion even when the client goes away.
func queueContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// ProcessQueue replays pending actions within the request. An empty result means there
// was nothing to replay or another run was already in progress.
func (a Api) ProcessQueue(c *gin.Context) {
	queue := a.offline.Queue()
	results := queue.ProcessQueue(queueContext(c))
	if results == nil {
		results = []model.SyncResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "stats": queue.Stats()})
}

func (a Api) RetryActions(c *gin.Context) {
	queue := a.offline.Queue()
	queue.RetryAll(queueContext(c))
	c.JSON(http.StatusOK, queue.Stats())
}

// TriggerSync asks the background processor for a run and returns at once.
func (a Api) TriggerSync(c *gin.Context) {
	processor := a.offline.Processor()
	if !processor.IsRunning() {
		respondError(c, apierror.NewAPIError(apierror.ErrConflict, "sync processor is not running", nil))
		return
	}
	processor.TriggerNow()
	c.JSON(http.StatusAccepted, gin.H{"triggered": true})
}
