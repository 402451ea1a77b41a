package logic

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fedipress/dto"
	"fedipress/shared"
	"fmt"
	"github.com/go-fed/httpsig"
	"net/http"
	"regexp"
	"strings"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_httpsig_checker.go -package mocks fedipress/logic IHttpSigChecker

type IHttpSigChecker interface {
	// Check verifies the request's HTTP signature. A bad or missing
	// signature is the caller's problem and comes back in sigProblem;
	// err is for failures on our side.
	Check(r *http.Request) (actor *dto.ActorInfo, sigProblem string, err error)
}

type httpSigChecker struct {
	logger   shared.ILogger
	resolver IActorResolver
	reKeyId  *regexp.Regexp
}

func NewHttpSigChecker(logger shared.ILogger, resolver IActorResolver) IHttpSigChecker {
	return &httpSigChecker{
		logger:   logger,
		resolver: resolver,
		reKeyId:  regexp.MustCompile(`keyId="([^"]+)"`),
	}
}

func (chk *httpSigChecker) Check(r *http.Request) (*dto.ActorInfo, string, error) {

	sigHeader := r.Header.Get("Signature")
	if sigHeader == "" {
		return nil, "Missing 'Signature' header", nil
	}
	groups := chk.reKeyId.FindStringSubmatch(sigHeader)
	if groups == nil {
		return nil, "Signature header has no keyId", nil
	}
	keyId := groups[1]

	// keyId points into the actor document; the fragment-less part is the
	// actor's URI
	actorUrl := keyId
	if ix := strings.IndexByte(actorUrl, '#'); ix != -1 {
		actorUrl = actorUrl[:ix]
	}

	actor, err := chk.resolver.Resolve(actorUrl)
	if err != nil {
		// Cannot fetch the signer: fail closed
		chk.logger.Infof("Failed to resolve signing actor %s: %v", actorUrl, err)
		return nil, fmt.Sprintf("Cannot retrieve signing actor: %s", actorUrl), nil
	}

	var pubKey *rsa.PublicKey
	block, _ := pem.Decode([]byte(actor.PublicKey.PublicKeyPem))
	if block == nil {
		return nil, fmt.Sprintf("Cannot decode public key PEM of actor: %s", actorUrl), nil
	}
	pubKeyParsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Sprintf("Cannot parse public key of actor: %s", actorUrl), nil
	}
	var ok bool
	if pubKey, ok = pubKeyParsed.(*rsa.PublicKey); !ok {
		return nil, fmt.Sprintf("Actor's public key is not RSA: %s", actorUrl), nil
	}

	verifier, err := httpsig.NewVerifier(r)
	if err != nil {
		return nil, fmt.Sprintf("Failed to read signature for verification: %v", err), nil
	}
	if err = verifier.Verify(pubKey, httpsig.RSA_SHA256); err != nil {
		return nil, "Signature verification failed", nil
	}

	return actor, "", nil
}
