package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/admingrid/internal/grid/controller"
	"github.com/odyssey-erp/admingrid/internal/platform/httpx"
)

// Mutation names accepted by POST /grids/{entity}/state.
const (
	OpSearch         = "search"
	OpSort           = "sort"
	OpFilter         = "filter"
	OpClearFilters   = "clear_filters"
	OpPerPage        = "per_page"
	OpPage           = "page"
	OpLoadMore       = "load_more"
	OpSelect         = "select"
	OpSelectPage     = "select_page"
	OpClearSelection = "clear_selection"
)

type stateForm struct {
	Op     string   `validate:"required,oneof=search sort filter clear_filters per_page page load_more select select_page clear_selection"`
	Key    string   `validate:"max=100"`
	Value  string   `validate:"max=255"`
	Values []string `validate:"max=50,dive,max=255"`
	IDs    []string `validate:"max=500,dive,max=100"`
}

type actionForm struct {
	ID        string `validate:"required,max=100"`
	Confirmed bool
}

type bulkForm struct {
	IDs       []string `validate:"max=500,dive,required,max=100"`
	Confirmed bool
}

func parseStateForm(r *http.Request) stateForm {
	return stateForm{
		Op:     strings.TrimSpace(r.PostFormValue("op")),
		Key:    strings.TrimSpace(r.PostFormValue("key")),
		Value:  r.PostFormValue("value"),
		Values: r.PostForm["values"],
		IDs:    r.PostForm["ids"],
	}
}

func parseActionForm(r *http.Request) actionForm {
	return actionForm{
		ID:        strings.TrimSpace(r.PostFormValue("id")),
		Confirmed: confirmed(r),
	}
}

func parseBulkForm(r *http.Request) bulkForm {
	return bulkForm{IDs: r.PostForm["ids"], Confirmed: confirmed(r)}
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.PostFormValue("confirmed"))
	return ok
}

func (h *Handler) validate(form any) error {
	if err := h.validator.Struct(form); err != nil {
		fields := []string{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range verrs {
				fields = append(fields, fmt.Sprintf("%s: %s", fieldErr.Field(), fieldErr.Tag()))
			}
		}
		return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, "; "))
	}
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s required", httpx.ErrValidation, field)
}

// apply runs one mutation against ctl.
func apply(ctx context.Context, ctl *controller.Controller, form stateForm) error {
	switch form.Op {
	case OpSearch:
		ctl.Search(ctx, form.Value)
	case OpSort:
		if form.Key == "" {
			return missing("key")
		}
		ctl.Sort(ctx, form.Key)
	case OpFilter:
		if form.Key == "" {
			return missing("key")
		}
		values := form.Values
		if len(values) == 0 {
			values = []string{form.Value}
		}
		ctl.SetFilter(ctx, form.Key, values)
	case OpClearFilters:
		ctl.ClearFilters(ctx)
	case OpPerPage, OpPage:
		n, err := strconv.Atoi(strings.TrimSpace(form.Value))
		if err != nil {
			return fmt.Errorf("%w: value must be a number", httpx.ErrValidation)
		}
		if form.Op == OpPerPage {
			ctl.SetPerPage(ctx, n)
		} else {
			ctl.GotoPage(ctx, n)
		}
	case OpLoadMore:
		ctl.LoadMore(ctx)
	case OpSelect:
		if form.Key == "" {
			return missing("key")
		}
		ctl.Select(form.Key)
	case OpSelectPage:
		ctl.SelectPage(form.IDs)
	case OpClearSelection:
		ctl.ClearSelection()
	}
	return nil
}
