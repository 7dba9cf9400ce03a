package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/MeKo-Tech/idextract/internal/testutil"
	"github.com/cucumber/godog"
)

const (
	arabicPage = "بطاقة الهوية"
	arabicName = "محمد احمد علي حسن"
	arabicDOB  = "١٩٩٠/٠٥/١٢"
	arabicID   = "1234567890"
)

// RegisterUploadSteps registers the recognizer, server and request steps.
func (testCtx *TestContext) RegisterUploadSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the recognizer reads:$`, testCtx.theRecognizerReads)
	sc.Step(`^the recognizer reads an Arabic national ID$`, testCtx.theRecognizerReadsAnArabicNationalID)
	sc.Step(`^the recognizer is unavailable$`, testCtx.theRecognizerIsUnavailable)

	sc.Step(`^the server allows origin "([^"]*)"$`, testCtx.theServerAllowsOrigin)
	sc.Step(`^the server accepts uploads up to (\d+) MB$`, testCtx.theServerAcceptsUploadsUpTo)
	sc.Step(`^the server limits clients to (\d+) requests? per minute$`, testCtx.theServerLimitsClientsPerMinute)
	sc.Step(`^the Arabic mode is "([^"]*)"$`, testCtx.theArabicModeIs)
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)

	sc.Step(`^I upload a document image as "([^"]*)"$`, testCtx.iUploadADocumentImageAs)
	sc.Step(`^I upload a document image in field "([^"]*)"$`, testCtx.iUploadADocumentImageInField)
	sc.Step(`^I upload a document image from origin "([^"]*)"$`, testCtx.iUploadADocumentImageFromOrigin)
	sc.Step(`^I upload "([^"]*)" containing "([^"]*)"$`, testCtx.iUploadContaining)
	sc.Step(`^I upload a (\d+) MB file$`, testCtx.iUploadAFileOfSize)
	sc.Step(`^I post a form without a file$`, testCtx.iPostAFormWithoutAFile)
	sc.Step(`^I post a plain body to "([^"]*)"$`, testCtx.iPostAPlainBodyTo)
	sc.Step(`^I send a (GET|PUT|DELETE|PATCH) request to "([^"]*)"$`, testCtx.iSendARequestTo)
	sc.Step(`^I send a preflight request to "([^"]*)" from origin "([^"]*)"$`, testCtx.iSendAPreflightRequest)
}

func (testCtx *TestContext) theRecognizerReads(text *godog.DocString) error {
	testCtx.Engine = &testutil.FakeEngine{Text: strings.TrimSpace(text.Content)}
	return nil
}

func (testCtx *TestContext) theRecognizerReadsAnArabicNationalID() error {
	testCtx.Engine = testutil.ScriptedDocument(arabicPage, map[recognizer.Language]string{
		recognizer.LanguageBoth:   arabicName,
		recognizer.LanguageArabic: arabicDOB,
		recognizer.LanguageLatin:  arabicID,
	})
	return nil
}

func (testCtx *TestContext) theRecognizerIsUnavailable() error {
	testCtx.Engine = &testutil.FakeEngine{Err: recognizer.ErrRecognitionUnavailable}
	return nil
}

func (testCtx *TestContext) theServerAllowsOrigin(origin string) error {
	testCtx.ServerConfig.AllowedOrigins = append(testCtx.ServerConfig.AllowedOrigins, origin)
	return nil
}

func (testCtx *TestContext) theServerAcceptsUploadsUpTo(mb int) error {
	testCtx.ServerConfig.MaxUploadMB = int64(mb)
	return nil
}

func (testCtx *TestContext) theServerLimitsClientsPerMinute(n int) error {
	testCtx.ServerConfig.RateLimit.Enabled = true
	testCtx.ServerConfig.RateLimit.RequestsPerMinute = n
	return nil
}

func (testCtx *TestContext) theArabicModeIs(mode string) error {
	testCtx.ArabicMode = mode
	return nil
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.StartServer()
}

// documentPNG renders a blank document at the calibrated reference size.
func documentPNG() ([]byte, error) {
	img := testutil.CreateTestImage(testutil.DocumentSize.Width, testutil.DocumentSize.Height, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

func (testCtx *TestContext) iUploadADocumentImageAs(filename string) error {
	data, err := documentPNG()
	if err != nil {
		return err
	}
	return testCtx.upload("file", filename, data, nil)
}

func (testCtx *TestContext) iUploadADocumentImageInField(field string) error {
	data, err := documentPNG()
	if err != nil {
		return err
	}
	return testCtx.upload(field, "card.png", data, nil)
}

func (testCtx *TestContext) iUploadADocumentImageFromOrigin(origin string) error {
	data, err := documentPNG()
	if err != nil {
		return err
	}
	return testCtx.upload("file", "card.png", data, http.Header{"Origin": []string{origin}})
}

func (testCtx *TestContext) iUploadContaining(filename, content string) error {
	return testCtx.upload("file", filename, []byte(content), nil)
}

func (testCtx *TestContext) iUploadAFileOfSize(mb int) error {
	return testCtx.upload("file", "large.png", bytes.Repeat([]byte{0xff}, mb*1024*1024), nil)
}

func (testCtx *TestContext) iPostAFormWithoutAFile() error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if err := w.WriteField("note", "no document here"); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return testCtx.send(http.MethodPost, "/upload/", body, http.Header{"Content-Type": []string{w.FormDataContentType()}})
}

func (testCtx *TestContext) iPostAPlainBodyTo(endpoint string) error {
	return testCtx.send(http.MethodPost, endpoint, strings.NewReader("hello"), http.Header{"Content-Type": []string{"text/plain"}})
}

func (testCtx *TestContext) iSendARequestTo(method, endpoint string) error {
	return testCtx.send(method, endpoint, nil, nil)
}

func (testCtx *TestContext) iSendAPreflightRequest(endpoint, origin string) error {
	return testCtx.send(http.MethodOptions, endpoint, nil, http.Header{
		"Origin":                        []string{origin},
		"Access-Control-Request-Method": []string{http.MethodPost},
	})
}

func (testCtx *TestContext) upload(field, filename string, data []byte, header http.Header) error {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", w.FormDataContentType())
	return testCtx.send(http.MethodPost, "/upload/", body, header)
}

// send performs a request against the test server and records the response.
func (testCtx *TestContext) send(method, endpoint string, body io.Reader, header http.Header) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}
	req, err := http.NewRequest(method, testCtx.ServerURL()+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(raw)
	testCtx.LastHTTPHeaders = resp.Header
	testCtx.LastJSON = nil
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			testCtx.LastJSON = decoded
		}
	}
	return nil
}

// lookup walks a dotted path such as "data.extracted_data.Name" through the
// last JSON response.
func (testCtx *TestContext) lookup(path string) (any, bool, error) {
	if testCtx.LastJSON == nil {
		return nil, false, fmt.Errorf("response is not JSON: %s", testCtx.LastHTTPResponse)
	}
	var cur any = testCtx.LastJSON
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("%s: %q is not an object in %s", path, key, testCtx.LastHTTPResponse)
		}
		if cur, ok = obj[key]; !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
