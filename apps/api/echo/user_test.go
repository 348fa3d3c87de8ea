package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/darasahq/darasa/core/user"
	testutil "github.com/darasahq/darasa/tests"
)

func Test_userApi_register(t *testing.T) {
	env := setup(t)

	body := func(uname, role, dept string) []byte {
		return marchallObj(t, map[string]string{
			"username":         uname,
			"password":         "s3cr3t",
			"password_confirm": "s3cr3t",
			"role":             role,
			"first_name":       "John",
			"last_name":        "Doe",
			"department":       dept,
		})
	}

	tests := []httpTest{
		{
			name: "student ok", method: http.MethodPost, path: "/v1/users/register",
			body: body("jdoe", user.RoleStudent, ""), wantCode: http.StatusCreated,
		},
		{
			name: "duplicate username", method: http.MethodPost, path: "/v1/users/register",
			body: body("jdoe", user.RoleStudent, ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "lecturer without department", method: http.MethodPost, path: "/v1/users/register",
			body: body("prof", user.RoleLecturer, ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"department": "a department is required for lecturers and admins"}),
		},
		{
			name: "lecturer ok", method: http.MethodPost, path: "/v1/users/register",
			body: body("prof", user.RoleLecturer, "CSC"), wantCode: http.StatusCreated,
		},
		{
			name: "bad role", method: http.MethodPost, path: "/v1/users/register",
			body: body("janitor", "janitor", ""), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
		},
	}
	runTests(t, env, tests)

	// ids come from the allocator: user ids from 1, student ids from 62001
	usr, err := env.usrSvc.GetByUsername(context.Background(), "jdoe")
	if err != nil {
		t.Fatalf("GetByUsername() failed: %v", err)
	}
	if usr.ID != 1 {
		t.Errorf("user ID = %d; want 1", usr.ID)
	}
	if usr.StudentID != 62001 {
		t.Errorf("student ID = %d; want 62001", usr.StudentID)
	}
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	usr := testutil.CreateUser(t, env.usrRepo, "jdoe", "s3cr3t", user.RoleStudent, "")

	t.Run("ok", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login",
			marchallObj(t, map[string]string{"username": "jdoe", "password": "s3cr3t"}))
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; want 200; body = %s", rec.Code, rec.Body.String())
		}
		var resp LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Token == "" {
			t.Error("login returned an empty token")
		}
		if resp.User.ID != usr.ID {
			t.Errorf("login user ID = %d; want %d", resp.User.ID, usr.ID)
		}

		// the token must work against an authed endpoint
		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/users/%d", usr.ID), resp.Token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("authed request code = %d; want 200", rec.Code)
		}
	})

	failed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "jdoe", "password": "hunter2"}),
			wantCode: http.StatusBadRequest, wantData: failed,
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "nobody", "password": "s3cr3t"}),
			wantCode: http.StatusBadRequest, wantData: failed,
		},
		{
			name: "username is case-sensitive", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, map[string]string{"username": "JDoe", "password": "s3cr3t"}),
			wantCode: http.StatusBadRequest, wantData: failed,
		},
	}
	runTests(t, env, tests)
}

func Test_userApi_queryRetrieve(t *testing.T) {
	env := setup(t)

	student := testutil.CreateUser(t, env.usrRepo, "jdoe", "pwd", user.RoleStudent, "")
	other := testutil.CreateUser(t, env.usrRepo, "jane", "pwd", user.RoleStudent, "")
	admin := testutil.CreateUser(t, env.usrRepo, "boss", "pwd", user.RoleAdmin, "CSC")

	studentToken := getToken(t, student, env.conf)
	adminToken := getToken(t, admin, env.conf)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{
			name: "query requires auth", path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "query requires admin", path: "/v1/users", token: studentToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "query as admin", path: "/v1/users", token: adminToken,
			wantData: marchallList(t, student, other, admin),
		},
		{
			name: "retrieve self", path: fmt.Sprintf("/v1/users/%d", student.ID), token: studentToken,
			wantData: marchallObj(t, student),
		},
		{
			name: "retrieve other forbidden", path: fmt.Sprintf("/v1/users/%d", other.ID), token: studentToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "admin retrieves anyone", path: fmt.Sprintf("/v1/users/%d", other.ID), token: adminToken,
			wantData: marchallObj(t, other),
		},
		{
			name: "admin retrieve unknown", path: "/v1/users/999", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "logout", method: http.MethodPost, path: "/v1/users/logout", token: studentToken,
			wantData: marchallObj(t, map[string]string{"message": "logged out"}),
		},
		{
			name: "logout requires auth", method: http.MethodPost, path: "/v1/users/logout",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
	}
	runTests(t, env, tests)
}

func Test_userApi_expiredToken(t *testing.T) {
	env := setup(t)

	usr := testutil.CreateUser(t, env.usrRepo, "jdoe", "pwd", user.RoleStudent, "")

	expConf := *env.conf
	expConf.JWTExpirationDelta = -time.Hour
	expiredToken := getToken(t, usr, &expConf)

	req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/users/%d", usr.ID), expiredToken)
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token code = %d; want 401; body = %s", rec.Code, rec.Body.String())
	}
}
