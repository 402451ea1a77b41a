package logic

import (
	"fedipress/dto"
	"fedipress/shared"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"regexp"
	"strings"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_mention_extractor.go -package mocks fedipress/logic IMentionExtractor

// MentionAdjuster can veto or rewrite a detected mention before it is
// resolved; moniker is the @user@host form.
type MentionAdjuster func(moniker string) (string, bool)

type IMentionExtractor interface {
	// Extract finds mentioned fediverse actors in HTML content and resolves
	// them. Returns moniker -> actor document for each that resolved.
	Extract(content string) map[string]*dto.ActorInfo
	SetAdjuster(adjuster MentionAdjuster)
}

type mentionExtractor struct {
	logger    shared.ILogger
	resolver  IActorResolver
	adjuster  MentionAdjuster
	reMention *regexp.Regexp
	stripper  *bluemonday.Policy
}

func NewMentionExtractor(logger shared.ILogger, resolver IActorResolver) IMentionExtractor {
	return &mentionExtractor{
		logger:    logger,
		resolver:  resolver,
		reMention: regexp.MustCompile(`@([\w.\-]+)@([\w.\-]+\.\w+)`),
		stripper:  bluemonday.StrictPolicy(),
	}
}

func (me *mentionExtractor) SetAdjuster(adjuster MentionAdjuster) {
	me.adjuster = adjuster
}

func (me *mentionExtractor) Extract(content string) map[string]*dto.ActorInfo {

	monikers := make(map[string]bool)

	// Anchors with a mention class, the way editors emit them
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err == nil {
		doc.Find("a.mention, a.u-url.mention").Each(func(i int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if groups := me.reMention.FindStringSubmatch(text); groups != nil {
				monikers["@"+groups[1]+"@"+groups[2]] = true
			}
		})
	}

	// Plain-text @user@host patterns, with markup stripped first
	plain := me.stripper.Sanitize(content)
	for _, groups := range me.reMention.FindAllStringSubmatch(plain, -1) {
		monikers["@"+groups[1]+"@"+groups[2]] = true
	}

	res := make(map[string]*dto.ActorInfo)
	for moniker := range monikers {
		if me.adjuster != nil {
			var keep bool
			if moniker, keep = me.adjuster(moniker); !keep {
				continue
			}
		}
		actor, err := me.resolver.Resolve(moniker)
		if err != nil {
			me.logger.Infof("Failed to resolve mentioned actor %s: %v", moniker, err)
			continue
		}
		res[moniker] = actor
	}
	return res
}
