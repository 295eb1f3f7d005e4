package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/reject"
)

const (
	MaxPageSize = 100

	pageSizeInvalid  string = "error.request.page-size-invalid"
	pageTokenInvalid string = "error.request.page-token-invalid"
)

// PageRequest is read from page_size and page_token. A zero Size means the
// caller asked for everything.
type PageRequest struct {
	Size   int
	Token  int
	Offset int
}

func NewPageRequest(c *gin.Context) (PageRequest, *reject.ProblemWithTrace) {
	var page PageRequest

	if raw, ok := c.GetQuery("page_size"); ok {
		pageSize, err := strconv.Atoi(raw)
		if err != nil || pageSize < 1 {
			return PageRequest{}, &reject.ProblemWithTrace{
				Problem: reject.NewProblem().
					WithTitle("Page size must be a positive number").
					WithStatus(http.StatusBadRequest).
					WithCode(pageSizeInvalid).
					Build(),
				Cause: err,
			}
		}
		page.Size = min(pageSize, MaxPageSize)
	}

	if raw, ok := c.GetQuery("page_token"); ok {
		pageToken, err := strconv.Atoi(raw)
		if err != nil || pageToken < 0 {
			return PageRequest{}, &reject.ProblemWithTrace{
				Problem: reject.NewProblem().
					WithTitle("Page token must be a non negative number").
					WithStatus(http.StatusBadRequest).
					WithCode(pageTokenInvalid).
					Build(),
				Cause: err,
			}
		}
		page.Token = pageToken
	}

	if page.Size > 0 {
		page.Offset = page.Size * page.Token
	}
	return page, nil
}

// NextToken is the token for the page after this one, or 0 when there is none.
func (p PageRequest) NextToken(total int64) int64 {
	if p.Size == 0 {
		return 0
	}
	if int64(p.Offset+p.Size) >= total {
		return 0
	}
	return int64(p.Token + 1)
}
