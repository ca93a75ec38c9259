package school

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/gateway"
	"github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/users"
)

// Sender is the part of gateway.Gateway the client uses.
type Sender interface {
	Send(ctx context.Context, method, path string, payload any, opts ...gateway.CallOption) (*gateway.Response, error)
}

// Client is a typed wrapper over the school API. Every call goes through the gateway, so
// expired tokens are refreshed transparently. API failures are returned as the gateway's
// *gateway.APIError, validation errors included.
type Client struct {
	api Sender
}

func NewClient(api Sender) *Client {
	return &Client{api: api}
}

// Admin: students

func (c *Client) ListStudents(ctx context.Context, page int) (*apimodel.Page[Student], error) {
	return getPage[Student](ctx, c.api, apimodel.RouteStudents, page, 0)
}

func (c *Client) CreateStudent(ctx context.Context, s Student) (*Student, error) {
	return sendRecord[Student](ctx, c.api, http.MethodPost, apimodel.RouteStudents, s, "student")
}

func (c *Client) UpdateStudent(ctx context.Context, id users.ID, s Student) (*Student, error) {
	return sendRecord[Student](ctx, c.api, http.MethodPatch, recordPath(apimodel.RouteStudent, id), s, "student")
}

func (c *Client) DeleteStudent(ctx context.Context, id users.ID) error {
	_, err := c.api.Send(ctx, http.MethodDelete, recordPath(apimodel.RouteStudent, id), nil)
	return err
}

// Admin: teachers

func (c *Client) ListTeachers(ctx context.Context, page, perPage int) (*apimodel.Page[Teacher], error) {
	return getPage[Teacher](ctx, c.api, apimodel.RouteTeachers, page, perPage)
}

// AllTeachers returns every teacher, e.g. to pick one when assigning a student.
// The endpoint answers with a plain list or with the first page of a listing.
func (c *Client) AllTeachers(ctx context.Context) ([]Teacher, error) {
	resp, err := c.api.Send(ctx, http.MethodGet, apimodel.RouteTeachers, nil)
	if err != nil {
		return nil, err
	}
	if body := bytes.TrimSpace(resp.Body); len(body) > 0 && body[0] == '[' {
		var list []Teacher
		if err := resp.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var page apimodel.Page[Teacher]
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (c *Client) CreateTeacher(ctx context.Context, t Teacher) (*Teacher, error) {
	return sendRecord[Teacher](ctx, c.api, http.MethodPost, apimodel.RouteTeachers, t, "teacher")
}

func (c *Client) UpdateTeacher(ctx context.Context, id users.ID, t Teacher) (*Teacher, error) {
	return sendRecord[Teacher](ctx, c.api, http.MethodPatch, recordPath(apimodel.RouteTeacher, id), t, "teacher")
}

func (c *Client) DeleteTeacher(ctx context.Context, id users.ID) error {
	_, err := c.api.Send(ctx, http.MethodDelete, recordPath(apimodel.RouteTeacher, id), nil)
	return err
}

// TeacherStudents lists the students assigned to a teacher.
func (c *Client) TeacherStudents(ctx context.Context, teacherID users.ID) ([]Student, error) {
	resp, err := c.api.Send(ctx, http.MethodGet, recordPath(apimodel.RouteTeacherStudents, teacherID), nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Students []Student `json:"students"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return body.Students, nil
}

// Teacher: own students

func (c *Client) MyStudents(ctx context.Context, page int) (*apimodel.Page[Student], error) {
	return getPage[Student](ctx, c.api, apimodel.RouteMyStudents, page, 0)
}

func (c *Client) AddMyStudent(ctx context.Context, s Student) (*Student, error) {
	return sendRecord[Student](ctx, c.api, http.MethodPost, apimodel.RouteMyStudents, s, "student")
}

func (c *Client) UpdateMyStudent(ctx context.Context, id users.ID, s Student) (*Student, error) {
	return sendRecord[Student](ctx, c.api, http.MethodPatch, recordPath(apimodel.RouteMyStudent, id), s, "student")
}

func (c *Client) DeleteMyStudent(ctx context.Context, id users.ID) error {
	_, err := c.api.Send(ctx, http.MethodDelete, recordPath(apimodel.RouteMyStudent, id), nil)
	return err
}

// Profiles

func (c *Client) StudentProfile(ctx context.Context) (*Student, error) {
	return sendRecord[Student](ctx, c.api, http.MethodGet, apimodel.RouteStudentProfile, nil, "student")
}

func (c *Client) UpdateStudentProfile(ctx context.Context, s Student) (*Student, error) {
	return sendRecord[Student](ctx, c.api, http.MethodPatch, apimodel.RouteStudentProfile, s, "student")
}

func (c *Client) TeacherProfile(ctx context.Context) (*Teacher, error) {
	return sendRecord[Teacher](ctx, c.api, http.MethodGet, apimodel.RouteTeacherProfile, nil, "teacher")
}

func (c *Client) UpdateTeacherProfile(ctx context.Context, t Teacher) (*Teacher, error) {
	return sendRecord[Teacher](ctx, c.api, http.MethodPatch, apimodel.RouteTeacherProfile, t, "teacher")
}

func recordPath(route string, id users.ID) string {
	return fmt.Sprintf(route, url.PathEscape(id.String()))
}

func getPage[T any](ctx context.Context, api Sender, route string, page, perPage int) (*apimodel.Page[T], error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}

	resp, err := api.Send(ctx, http.MethodGet, route+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var result apimodel.Page[T]
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	if result.PerPage == 0 {
		result.PerPage = perPage
	}
	return &result, nil
}

// sendRecord sends payload and decodes the single record in the response. Some endpoints wrap
// the record as {"message": ..., "<key>": {...}}; others return it bare.
func sendRecord[T any](ctx context.Context, api Sender, method, path string, payload any, key string) (*T, error) {
	resp, err := api.Send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	raw := resp.Body
	if wrapped, ok := envelope[key]; ok && len(bytes.TrimSpace(wrapped)) > 0 && wrapped[0] == '{' {
		raw = wrapped
	}

	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedResponse, "[School %s %s] %s", method, path, err.Error())
	}
	return &record, nil
}
