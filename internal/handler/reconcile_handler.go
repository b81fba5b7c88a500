package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/service"
)

// ReconcileItem 按需校准单个条目的派生计数与下一次发生日期
func (a *API) ReconcileItem(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	result, err := a.reconciler.Reconcile(id)
	if err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			respondError(c, http.StatusNotFound, "条目不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "校准失败")
		return
	}

	c.JSON(http.StatusOK, reconcileResultToPayload(*result))
}

// ReconcileAll 校准全部条目并返回修正汇总
func (a *API) ReconcileAll(c *gin.Context) {
	results, err := a.reconciler.ReconcileAll()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "校准失败")
		return
	}

	corrected := 0
	payload := make([]gin.H, 0, len(results))
	for _, result := range results {
		if result.Corrected {
			corrected++
		}
		payload = append(payload, reconcileResultToPayload(result))
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":   len(results),
		"corrected": corrected,
		"results":   payload,
	})
}

func reconcileResultToPayload(result service.ReconcileResult) gin.H {
	payload := gin.H{
		"run_id":    result.RunID,
		"item_id":   result.ItemID,
		"before":    result.CounterBefore,
		"after":     result.CounterAfter,
		"corrected": result.Corrected,
	}

	if result.NextBefore != nil {
		payload["next_before"] = result.NextBefore.String()
	} else {
		payload["next_before"] = nil
	}
	if result.NextAfter != nil {
		payload["next_after"] = result.NextAfter.String()
	} else {
		payload["next_after"] = nil
	}

	return payload
}
