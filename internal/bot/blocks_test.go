package bot

import (
	"testing"

	"github.com/slack-go/slack"
)

func menuOptionValues(blocks []slack.Block) []string {
	var values []string
	for _, b := range blocks {
		ab, ok := b.(*slack.ActionBlock)
		if !ok || ab.Elements == nil {
			continue
		}
		for _, el := range ab.Elements.ElementSet {
			sel, ok := el.(*slack.SelectBlockElement)
			if !ok {
				continue
			}
			for _, opt := range sel.Options {
				values = append(values, opt.Value)
			}
		}
	}
	return values
}

func TestMenuShapeFollowsLoginState(t *testing.T) {
	loggedOut := menuOptionValues(MenuBlocks(false))
	for _, v := range loggedOut {
		if v == actionBalance || v == actionNominationMenu {
			t.Errorf("logged-out menu must not offer %q", v)
		}
	}
	hasLogin := false
	for _, v := range loggedOut {
		if v == actionLogin {
			hasLogin = true
		}
	}
	if !hasLogin {
		t.Errorf("logged-out menu must offer login, got %v", loggedOut)
	}

	loggedIn := menuOptionValues(MenuBlocks(true))
	for _, v := range loggedIn {
		if v == actionLogin {
			t.Errorf("logged-in menu must not offer login again")
		}
	}
}

func contextTexts(blocks []slack.Block) []string {
	var texts []string
	for _, b := range blocks {
		cb, ok := b.(*slack.ContextBlock)
		if !ok {
			continue
		}
		for _, el := range cb.ContextElements.Elements {
			if txt, ok := el.(*slack.TextBlockObject); ok {
				texts = append(texts, txt.Text)
			}
		}
	}
	return texts
}

func TestNominationTableEmptyStates(t *testing.T) {
	none := NominationTableBlocks("", nil, false)
	found := false
	for _, txt := range contextTexts(none) {
		if txt == "No active nominations :man-shrugging:" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing no-nominations empty state")
	}

	noVotes := NominationTableBlocks("MVP", nil, true)
	found = false
	for _, txt := range contextTexts(noVotes) {
		if txt == "No votes yet :yawning_face:" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing no-votes empty state")
	}
}
