package support

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// RegisterResponseSteps registers assertions on the last HTTP response.
func (testCtx *TestContext) RegisterResponseSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be JSON$`, testCtx.theResponseShouldBeJSON)
	sc.Step(`^the response should be successful$`, testCtx.theResponseShouldBeSuccessful)
	sc.Step(`^the response should be a failure with code "([^"]*)"$`, testCtx.theResponseShouldBeAFailureWithCode)
	sc.Step(`^the response error should be "([^"]*)"$`, testCtx.theResponseErrorShouldBe)
	sc.Step(`^the response should not contain "([^"]*)"$`, testCtx.theResponseShouldNotContain)
	sc.Step(`^"([^"]*)" should be "([^"]*)"$`, testCtx.pathShouldBe)
	sc.Step(`^"([^"]*)" should be null$`, testCtx.pathShouldBeNull)
	sc.Step(`^"([^"]*)" should not be empty$`, testCtx.pathShouldNotBeEmpty)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be absent$`, testCtx.theResponseHeaderShouldBeAbsent)
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeJSON() error {
	if testCtx.LastJSON == nil {
		return fmt.Errorf("expected a JSON object, got %q (Content-Type %q)",
			testCtx.LastHTTPResponse, testCtx.LastHTTPHeaders.Get("Content-Type"))
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeSuccessful() error {
	return testCtx.pathShouldBe("success", "true")
}

func (testCtx *TestContext) theResponseShouldBeAFailureWithCode(code string) error {
	if err := testCtx.pathShouldBe("success", "false"); err != nil {
		return err
	}
	if err := testCtx.pathShouldNotBeEmpty("error"); err != nil {
		return err
	}
	return testCtx.pathShouldBe("code", code)
}

func (testCtx *TestContext) theResponseErrorShouldBe(message string) error {
	if err := testCtx.pathShouldBe("success", "false"); err != nil {
		return err
	}
	return testCtx.pathShouldBe("error", message)
}

func (testCtx *TestContext) theResponseShouldNotContain(key string) error {
	_, found, err := testCtx.lookup(key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("expected %q to be absent in %s", key, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) pathShouldBe(path, expected string) error {
	v, found, err := testCtx.lookup(path)
	if err != nil {
		return err
	}
	if !found || v == nil {
		return fmt.Errorf("expected %s to be %q, but it is missing in %s", path, expected, testCtx.LastHTTPResponse)
	}
	if got := asString(v); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", path, expected, got)
	}
	return nil
}

func (testCtx *TestContext) pathShouldBeNull(path string) error {
	v, found, err := testCtx.lookup(path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("expected %s to be present as null in %s", path, testCtx.LastHTTPResponse)
	}
	if v != nil {
		return fmt.Errorf("expected %s to be null, got %v", path, v)
	}
	return nil
}

func (testCtx *TestContext) pathShouldNotBeEmpty(path string) error {
	v, found, err := testCtx.lookup(path)
	if err != nil {
		return err
	}
	if !found || v == nil || strings.TrimSpace(asString(v)) == "" {
		return fmt.Errorf("expected %s to be non-empty in %s", path, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("expected header %s to be %q, got %q", name, expected, got)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeAbsent(name string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != "" {
		return fmt.Errorf("expected header %s to be absent, got %q", name, got)
	}
	return nil
}
