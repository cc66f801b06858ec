package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"snapbox_console/internal/apperr"
)

// FileRecord is an uploaded media file
type FileRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Mimetype string `json:"mimetype"`
	Path     string `json:"path"`
}

// IsVideo mirrors the media grid's preview choice
func (f FileRecord) IsVideo() bool {
	return strings.HasPrefix(f.Mimetype, "video/") || strings.HasSuffix(f.URL, ".mp4")
}

// SizeKB is the rounded size shown on file cards
func (f FileRecord) SizeKB() int64 {
	return (f.Size + 512) / 1024
}

// SavedURL is a campaign URL stored by the API
type SavedURL struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Image string `json:"image,omitempty"`
}

// VerifyResult is the answer of a successful code check
type VerifyResult struct {
	Token   string
	IsAdmin bool
}

// UserLog is one login/logout pair recorded by the API
type UserLog struct {
	Email                  string     `json:"email"`
	LoginTime              *time.Time `json:"login_time"`
	LogoutTime             *time.Time `json:"logout_time"`
	MostViewedPath         string     `json:"most_viewed_path"`
	SessionDurationMinutes float64    `json:"session_duration_minutes"`
}

// AdminStats backs the admin dashboard
type AdminStats struct {
	TotalUsers  int       `json:"total_users"`
	OnlineUsers int       `json:"online_users"`
	UserLogs    []UserLog `json:"user_logs"`
}

// DailyPoint is one day of click data
type DailyPoint struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// CountItem is a labelled counter (country, referrer, ...)
type CountItem struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// PerformanceStats is the per-URL analytics report
type PerformanceStats struct {
	TotalClicks    int64            `json:"total_clicks"`
	UniqueVisitors int64            `json:"unique_visitors"`
	ConversionRate float64          `json:"conversion_rate"`
	Devices        map[string]int64 `json:"devices"`
	DailyData      []DailyPoint     `json:"daily_data"`
	GeoData        []CountItem      `json:"geo_data"`
	Referrers      []CountItem      `json:"referrers"`
}

// UploadFile is a file to be sent with a multipart request
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// SnapBoxAPI talks to the remote SnapBox API over JSON
type SnapBoxAPI struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewSnapBoxAPI builds a client. Every call is bounded by timeout on top of
// the caller's context.
func NewSnapBoxAPI(baseURL string, timeout time.Duration) *SnapBoxAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SnapBoxAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

type apiStatus struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *SnapBoxAPI) makeRequest(ctx context.Context, op, method, endpoint, contentType string, body io.Reader, out interface{}) error {
	if s.baseURL == "" {
		return apperr.New(apperr.KindTransport, op, "The SnapBox API is not configured.")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return apperr.Wrap(apperr.KindTransport, op, "Could not reach the server.", fmt.Errorf("failed to create request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.Wrap(apperr.KindTransport, op, "The server took too long to answer.", err)
		}
		return apperr.Wrap(apperr.KindTransport, op, "Could not reach the server.", fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindTransport, op, "Could not read the server response.", err)
	}

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("Request failed with status %d.", resp.StatusCode)
		var status apiStatus
		if json.Unmarshal(data, &status) == nil && status.Error != "" {
			msg = status.Error
		}
		return apperr.Wrap(apperr.KindRejection, op, msg, fmt.Errorf("status %d: %s", resp.StatusCode, string(data)))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.KindTransport, op, "Unexpected server response.", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (s *SnapBoxAPI) postJSON(ctx context.Context, op, endpoint string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "Invalid request.", fmt.Errorf("failed to marshal payload: %w", err))
	}
	return s.makeRequest(ctx, op, http.MethodPost, endpoint, "application/json", bytes.NewReader(data), out)
}

// requireSuccess turns a {success:false} payload into a rejection
func requireSuccess(op string, status apiStatus, fallback string) error {
	if status.Success != nil && *status.Success {
		return nil
	}
	msg := fallback
	if status.Error != "" {
		msg = status.Error
	} else if status.Message != "" {
		msg = status.Message
	}
	return apperr.New(apperr.KindRejection, op, msg)
}

// SendVerificationCode asks the API to e-mail a one-time code
func (s *SnapBoxAPI) SendVerificationCode(ctx context.Context, email string) error {
	var status apiStatus
	if err := s.postJSON(ctx, "send_code", "/send-verification-code", map[string]string{"email": email}, &status); err != nil {
		return err
	}
	return requireSuccess("send_code", status, "Could not send the verification code.")
}

// VerifyCode checks the one-time code
func (s *SnapBoxAPI) VerifyCode(ctx context.Context, email, code string) (VerifyResult, error) {
	var resp struct {
		apiStatus
		Token   string `json:"token"`
		IsAdmin bool   `json:"isAdmin"`
	}
	payload := map[string]string{"email": email, "code": code}
	if err := s.postJSON(ctx, "verify_code", "/verify-code", payload, &resp); err != nil {
		return VerifyResult{}, err
	}
	if err := requireSuccess("verify_code", resp.apiStatus, "Invalid verification code."); err != nil {
		return VerifyResult{}, err
	}
	if resp.Token == "" {
		return VerifyResult{}, apperr.New(apperr.KindRejection, "verify_code", "The server did not return a session token.")
	}
	return VerifyResult{Token: resp.Token, IsAdmin: resp.IsAdmin}, nil
}

// ReportLogout records the logout event. The response body is ignored.
func (s *SnapBoxAPI) ReportLogout(ctx context.Context, email, mostViewedPath string) error {
	payload := map[string]string{"email": email, "most_viewed_path": mostViewedPath}
	return s.postJSON(ctx, "logout", "/logout", payload, nil)
}

func (s *SnapBoxAPI) ListFiles(ctx context.Context) ([]FileRecord, error) {
	var files []FileRecord
	if err := s.makeRequest(ctx, "list_files", http.MethodGet, "/files", "", nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// UploadFile sends one file as multipart/form-data
func (s *SnapBoxAPI) UploadFile(ctx context.Context, file UploadFile) (FileRecord, error) {
	body, contentType, err := multipartBody(nil, "file", &file)
	if err != nil {
		return FileRecord{}, apperr.Wrap(apperr.KindValidation, "upload_file", "Could not read the file.", err)
	}
	var record FileRecord
	if err := s.makeRequest(ctx, "upload_file", http.MethodPost, "/upload", contentType, body, &record); err != nil {
		return FileRecord{}, err
	}
	return record, nil
}

func (s *SnapBoxAPI) DeleteFile(ctx context.Context, id, path string) error {
	data, _ := json.Marshal(map[string]string{"path": path})
	endpoint := "/files/" + url.PathEscape(id)
	return s.makeRequest(ctx, "delete_file", http.MethodDelete, endpoint, "application/json", bytes.NewReader(data), nil)
}

// SendEmail sends html to every recipient
func (s *SnapBoxAPI) SendEmail(ctx context.Context, to []string, html string) error {
	var status apiStatus
	payload := map[string]interface{}{"to": to, "html": html}
	if err := s.postJSON(ctx, "send_email", "/send-email", payload, &status); err != nil {
		return err
	}
	return requireSuccess("send_email", status, "The e-mails could not be sent.")
}

func (s *SnapBoxAPI) ListURLs(ctx context.Context) ([]SavedURL, error) {
	var urls []SavedURL
	if err := s.makeRequest(ctx, "list_urls", http.MethodGet, "/urls", "", nil, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// SaveURL stores a campaign URL with an optional thumbnail
func (s *SnapBoxAPI) SaveURL(ctx context.Context, name, rawURL string, image *UploadFile) error {
	fields := map[string]string{"name": name, "url": rawURL}
	body, contentType, err := multipartBody(fields, "image", image)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "save_url", "Could not read the image.", err)
	}
	return s.makeRequest(ctx, "save_url", http.MethodPost, "/save-url", contentType, body, nil)
}

func (s *SnapBoxAPI) RenameURL(ctx context.Context, id, name string) error {
	data, _ := json.Marshal(map[string]string{"name": name})
	endpoint := "/urls/" + url.PathEscape(id)
	return s.makeRequest(ctx, "rename_url", http.MethodPut, endpoint, "application/json", bytes.NewReader(data), nil)
}

func (s *SnapBoxAPI) DeleteURL(ctx context.Context, id string) error {
	return s.makeRequest(ctx, "delete_url", http.MethodDelete, "/urls/"+url.PathEscape(id), "", nil, nil)
}

func (s *SnapBoxAPI) AdminStats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	if err := s.makeRequest(ctx, "admin_stats", http.MethodGet, "/admin-stats", "", nil, &stats); err != nil {
		return AdminStats{}, err
	}
	return stats, nil
}

// AddAdmin grants admin rights and returns the server's confirmation message
func (s *SnapBoxAPI) AddAdmin(ctx context.Context, email string) (string, error) {
	var status apiStatus
	if err := s.postJSON(ctx, "add_admin", "/add-admin", map[string]string{"email": email}, &status); err != nil {
		return "", err
	}
	return status.Message, nil
}

// URLPerformance returns click statistics for a saved URL between two dates
func (s *SnapBoxAPI) URLPerformance(ctx context.Context, id string, start, end time.Time) (PerformanceStats, error) {
	query := url.Values{}
	query.Set("start_date", start.Format("2006-01-02"))
	query.Set("end_date", end.Format("2006-01-02"))
	endpoint := "/url-performance/" + url.PathEscape(id) + "?" + query.Encode()

	var stats PerformanceStats
	if err := s.makeRequest(ctx, "url_performance", http.MethodGet, endpoint, "", nil, &stats); err != nil {
		return PerformanceStats{}, err
	}
	return stats, nil
}

func multipartBody(fields map[string]string, fileField string, file *UploadFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if file != nil && file.Body != nil {
		part, err := writer.CreateFormFile(fileField, file.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, file.Body); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
