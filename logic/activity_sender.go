package logic

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"fedipress/dto"
	"fedipress/shared"
	"fmt"
	"github.com/go-fed/httpsig"
	"io"
	"net/http"
	"net/url"
	"time"
)

const sendTimeoutSec = 10

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_activity_sender.go -package mocks fedipress/logic IActivitySender

type IActivitySender interface {
	Send(privKey *rsa.PrivateKey, sendingHandle, inboxUrl string, activity *dto.ActivityOut) error
}

type activitySender struct {
	logger    shared.ILogger
	userAgent shared.IUserAgent
	metrics   IMetrics
	idb       shared.IdBuilder
}

func NewActivitySender(
	cfg *shared.Config,
	logger shared.ILogger,
	userAgent shared.IUserAgent,
	metrics IMetrics,
) IActivitySender {
	return &activitySender{
		logger:    logger,
		userAgent: userAgent,
		metrics:   metrics,
		idb:       shared.IdBuilder{Host: cfg.Host},
	}
}

func (sender *activitySender) Send(
	privKey *rsa.PrivateKey,
	sendingHandle, inboxUrl string,
	activity *dto.ActivityOut,
) error {

	bodyJson, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to serialize activity: %v", err)
	}

	sender.logger.Debugf("Activity to %s: %s", inboxUrl, string(bodyJson))

	req, err := http.NewRequest("POST", inboxUrl, bytes.NewReader(bodyJson))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	dateStr := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", dateStr)
	sender.userAgent.AddUserAgent(req)

	if err = sender.signRequest(privKey, sendingHandle, req, bodyJson); err != nil {
		return fmt.Errorf("failed to sign request: %v", err)
	}

	parsedUrl, err := url.Parse(inboxUrl)
	if err != nil {
		return fmt.Errorf("failed to parse inbox URL '%s': %v", inboxUrl, err)
	}

	obs := sender.metrics.StartApubRequestOut("send_to_inbox")
	client := http.Client{Timeout: time.Second * sendTimeoutSec}
	resp, err := client.Do(req)
	obs.Finish()
	if err != nil {
		sender.metrics.DeliveryFailed()
		return fmt.Errorf("failed to deliver to %s: %v", parsedUrl.Hostname(), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sender.metrics.DeliveryFailed()
		return fmt.Errorf("inbox %s returned status %d: %s",
			inboxUrl, resp.StatusCode, shared.TruncateWithEllipsis(string(respBody), 256))
	}

	sender.metrics.ActivityDelivered()
	return nil
}

func (sender *activitySender) signRequest(
	privKey *rsa.PrivateKey,
	sendingHandle string,
	req *http.Request,
	bodyJson []byte,
) error {

	prefs := []httpsig.Algorithm{httpsig.RSA_SHA256}
	digestAlgorithm := httpsig.DigestSha256
	headersToSign := []string{httpsig.RequestTarget, "host", "date", "digest"}
	signer, _, err := httpsig.NewSigner(prefs, digestAlgorithm, headersToSign, httpsig.Signature, 0)
	if err != nil {
		return err
	}
	keyId := sender.idb.UserKeyId(sendingHandle)
	return signer.SignRequest(privKey, keyId, req, bodyJson)
}
