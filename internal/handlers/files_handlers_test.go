package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func createFileRequest(t *testing.T, env *testEnv, token string, userID int64, name string, parentID int64, content string) *http.Response {
	t.Helper()
	path := fmt.Sprintf("/api/file?user=%d&name=%s&parentDirectory=%d", userID, name, parentID)
	return performRequest(t, env.app, http.MethodPost, path, strings.NewReader(content), authHeaders(token))
}

func TestFileCreateAndRead(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "notes.txt", rootID, "hello world")
	assertStatus(t, resp, http.StatusCreated)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "ok")

	file, ok := body["file"].(map[string]any)
	if !ok {
		t.Fatalf("expected file object, got %+v", body)
	}
	if got, _ := file["name"].(string); got != "notes.txt" {
		t.Fatalf("expected name notes.txt, got %q", got)
	}
	if got := jsonInt64(t, file, "owner"); got != 1 {
		t.Fatalf("expected owner 1, got %d", got)
	}
	if got := jsonInt64(t, file, "size"); got != int64(len("hello world")) {
		t.Fatalf("expected size %d, got %d", len("hello world"), got)
	}
	fileID := jsonInt64(t, file, "id")

	resp = performRequest(t, env.app, http.MethodGet, fmt.Sprintf("/api/file/%d?user=1", fileID), nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream content type, got %q", got)
	}
	if got := readBody(t, resp); !bytes.Equal(got, []byte("hello world")) {
		t.Fatalf("expected raw content %q, got %q", "hello world", got)
	}
}

func TestFileCreateRejectsDuplicateName(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "a.txt", rootID, "one")
	assertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = createFileRequest(t, env, token, 1, "a.txt", rootID, "two")
	assertStatus(t, resp, http.StatusConflict)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "duplicate_name")
}

func TestFileCreateSiblingDirectoryNameConflicts(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	path := fmt.Sprintf("/api/directory?user=1&name=shared&parentDirectory=%d", rootID)
	resp := performRequest(t, env.app, http.MethodPost, path, nil, authHeaders(token))
	assertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = createFileRequest(t, env, token, 1, "shared", rootID, "content")
	assertStatus(t, resp, http.StatusConflict)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "duplicate_name")
}

func TestFileCreateMissingNameIsMalformed(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	path := fmt.Sprintf("/api/file?user=1&parentDirectory=%d", rootID)
	resp := performRequest(t, env.app, http.MethodPost, path, strings.NewReader("x"), authHeaders(token))
	assertStatus(t, resp, http.StatusBadRequest)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "malformed_request")
}

func TestFileCreateIntoMissingParent(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "a.txt", 999999, "content")
	assertStatus(t, resp, http.StatusNotFound)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "not_found")
}

func TestFileCreateExceedingFileCap(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	oversized := strings.Repeat("x", testMaxFileBytes+1)
	resp := createFileRequest(t, env, token, 1, "big.bin", rootID, oversized)
	assertStatus(t, resp, http.StatusRequestEntityTooLarge)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "quota_exceeded")
}

func TestFileCreateBodyBeyondServerLimit(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	// Bodies the server refuses to buffer still answer with the envelope,
	// not Fiber's plain-text 413.
	oversized := strings.Repeat("x", testMaxFileBytes*4+1)
	resp := createFileRequest(t, env, token, 1, "huge.bin", rootID, oversized)
	assertStatus(t, resp, http.StatusRequestEntityTooLarge)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "quota_exceeded")
}

func TestFileCreateExceedingUserQuota(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	// Fill the account with per-file-cap sized files, then push one byte
	// over the user limit.
	for i := 0; i < testMaxUserBytes/testMaxFileBytes; i++ {
		resp := createFileRequest(t, env, token, 1, fmt.Sprintf("fill%d.bin", i), rootID, strings.Repeat("x", testMaxFileBytes))
		assertStatus(t, resp, http.StatusCreated)
		resp.Body.Close()
	}

	resp := createFileRequest(t, env, token, 1, "straw.bin", rootID, "x")
	assertStatus(t, resp, http.StatusRequestEntityTooLarge)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "quota_exceeded")
}

func TestFileUpdateRename(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "old.txt", rootID, "content")
	body := decodeJSONMap(t, resp)
	fileID := jsonInt64(t, body["file"].(map[string]any), "id")

	path := fmt.Sprintf("/api/file/%d?user=1&name=new.txt", fileID)
	resp = performRequest(t, env.app, http.MethodPut, path, nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body = decodeJSONMap(t, resp)
	assertEnvelope(t, body, "ok")
	if got, _ := body["file"].(map[string]any)["name"].(string); got != "new.txt" {
		t.Fatalf("expected renamed file, got %q", got)
	}
}

func TestFileUpdateMove(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := performRequest(t, env.app, http.MethodPost,
		fmt.Sprintf("/api/directory?user=1&name=sub&parentDirectory=%d", rootID), nil, authHeaders(token))
	subID := jsonInt64(t, decodeJSONMap(t, resp)["directory"].(map[string]any), "id")

	resp = createFileRequest(t, env, token, 1, "a.txt", rootID, "content")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	path := fmt.Sprintf("/api/file/%d?user=1&parentDirectory=%d", fileID, subID)
	resp = performRequest(t, env.app, http.MethodPut, path, nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	if got := jsonInt64(t, body["file"].(map[string]any), "parentDirectory"); got != subID {
		t.Fatalf("expected parent %d, got %d", subID, got)
	}
}

func TestFileUpdateRewriteBody(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "a.txt", rootID, "before")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	path := fmt.Sprintf("/api/file/%d?user=1&writebody", fileID)
	resp = performRequest(t, env.app, http.MethodPut, path, strings.NewReader("after"), authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	if got := jsonInt64(t, body["file"].(map[string]any), "size"); got != int64(len("after")) {
		t.Fatalf("expected size %d, got %d", len("after"), got)
	}

	resp = performRequest(t, env.app, http.MethodGet, fmt.Sprintf("/api/file/%d?user=1", fileID), nil, authHeaders(token))
	if got := readBody(t, resp); string(got) != "after" {
		t.Fatalf("expected rewritten content, got %q", got)
	}
}

func TestFileUpdateBodyWithoutFlagIsMalformed(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "a.txt", rootID, "before")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	path := fmt.Sprintf("/api/file/%d?user=1&name=b.txt", fileID)
	resp = performRequest(t, env.app, http.MethodPut, path, strings.NewReader("stray"), authHeaders(token))
	assertStatus(t, resp, http.StatusBadRequest)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "malformed_request")
}

func TestFileUpdateFlagWithValueIsMalformed(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "a.txt", rootID, "before")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	path := fmt.Sprintf("/api/file/%d?user=1&writebody=true", fileID)
	resp = performRequest(t, env.app, http.MethodPut, path, strings.NewReader("after"), authHeaders(token))
	assertStatus(t, resp, http.StatusBadRequest)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "malformed_request")
}

func TestFileMoveAcrossOwnersIsRejected(t *testing.T) {
	env := setupTestEnv(t)
	aliceToken, aliceRoot := provisionUser(t, env, 1, "alice")
	bobToken, bobRoot := provisionUser(t, env, 2, "bob")

	resp := createFileRequest(t, env, aliceToken, 1, "a.txt", aliceRoot, "content")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	// Bob grants Alice write access to his root so only the ownership
	// rule stands in the way.
	sharePath := fmt.Sprintf("/api/share?user=2&subject=1&targetType=directory&targetID=%d&canWrite", bobRoot)
	resp = performRequest(t, env.app, http.MethodPost, sharePath, nil, authHeaders(bobToken))
	assertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	path := fmt.Sprintf("/api/file/%d?user=1&parentDirectory=%d", fileID, bobRoot)
	resp = performRequest(t, env.app, http.MethodPut, path, nil, authHeaders(aliceToken))
	assertStatus(t, resp, http.StatusUnprocessableEntity)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "transferral_rejected")
}

func TestFileDelete(t *testing.T) {
	env := setupTestEnv(t)
	token, rootID := provisionUser(t, env, 1, "alice")

	resp := createFileRequest(t, env, token, 1, "a.txt", rootID, "content")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	resp = performRequest(t, env.app, http.MethodDelete, fmt.Sprintf("/api/file/%d?user=1", fileID), nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = performRequest(t, env.app, http.MethodGet, fmt.Sprintf("/api/file/%d?user=1", fileID), nil, authHeaders(token))
	assertStatus(t, resp, http.StatusNotFound)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "not_found")
}

func TestFileInvisibleToStranger(t *testing.T) {
	env := setupTestEnv(t)
	aliceToken, aliceRoot := provisionUser(t, env, 1, "alice")
	bobToken, _ := provisionUser(t, env, 2, "bob")

	resp := createFileRequest(t, env, aliceToken, 1, "secret.txt", aliceRoot, "content")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	// No share: the very existence of the file stays hidden.
	resp = performRequest(t, env.app, http.MethodGet, fmt.Sprintf("/api/file/%d?user=2", fileID), nil, authHeaders(bobToken))
	assertStatus(t, resp, http.StatusNotFound)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "not_found")
}

func TestFileReadOnlyShareRejectsWrite(t *testing.T) {
	env := setupTestEnv(t)
	aliceToken, aliceRoot := provisionUser(t, env, 1, "alice")
	bobToken, _ := provisionUser(t, env, 2, "bob")

	resp := createFileRequest(t, env, aliceToken, 1, "a.txt", aliceRoot, "content")
	fileID := jsonInt64(t, decodeJSONMap(t, resp)["file"].(map[string]any), "id")

	sharePath := fmt.Sprintf("/api/share?user=1&subject=2&targetType=file&targetID=%d", fileID)
	resp = performRequest(t, env.app, http.MethodPost, sharePath, nil, authHeaders(aliceToken))
	assertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	// Read works.
	resp = performRequest(t, env.app, http.MethodGet, fmt.Sprintf("/api/file/%d?user=2", fileID), nil, authHeaders(bobToken))
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Write is denied, and because the file is readable the denial is
	// visible as permission_denied rather than not_found.
	path := fmt.Sprintf("/api/file/%d?user=2&writebody", fileID)
	resp = performRequest(t, env.app, http.MethodPut, path, strings.NewReader("overwrite"), authHeaders(bobToken))
	assertStatus(t, resp, http.StatusForbidden)
	body := decodeJSONMap(t, resp)
	assertEnvelope(t, body, "permission_denied")
}
