package bot

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/enthusiasm-bot/enthusiasm/internal/near"
)

// Block Kit renderers. Pure functions: fixed templates plus interpolated text,
// no business logic beyond empty-state branches.

const (
	actionMenu           = "near-bot-menu"
	actionLogin          = "login"
	actionAbout          = "about"
	actionBalance        = "balance"
	actionWithdraw       = "withdraw"
	actionNetworkMain    = "network-select-main"
	actionSendRewards    = "send-rewards"
	actionNominationMenu = "nomination-menu"
	actionNominationNew  = "nomination-new"
	actionNominationVote = "nomination-vote-action"
	actionNominationEnd  = "nomination-finish"
	actionNominationHelp = "nomination-help"
	actionRenderMenu     = "render-bot-menu"

	nominationModalCallback = "nomination_modal_submission"

	nominationTitleBlock   = "nomination-new-name"
	nominationTitleAction  = "nomination_new_name"
	nominationAmountBlock  = "nomination-new-amount"
	nominationAmountAction = "nomination_amount"
)

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func button(actionID, label string) *slack.ButtonBlockElement {
	return slack.NewButtonBlockElement(actionID, "", plain(label))
}

func primaryButton(actionID, label string) *slack.ButtonBlockElement {
	return button(actionID, label).WithStyle(slack.StylePrimary)
}

func menuButton() *slack.ButtonBlockElement {
	return button(actionRenderMenu, "Back to menu")
}

// MenuBlocks renders the bot menu. The select carries the generic menu action
// id; the chosen option value is the action routed.
func MenuBlocks(loggedIn bool) []slack.Block {
	var options []*slack.OptionBlockObject
	if loggedIn {
		options = []*slack.OptionBlockObject{
			slack.NewOptionBlockObject(actionBalance, plain("Balance"), nil),
			slack.NewOptionBlockObject(actionNominationMenu, plain("Nominations"), nil),
			slack.NewOptionBlockObject(actionNominationNew, plain("New nomination"), nil),
			slack.NewOptionBlockObject(actionNominationHelp, plain("How nominations work"), nil),
			slack.NewOptionBlockObject(actionAbout, plain("About"), nil),
		}
	} else {
		options = []*slack.OptionBlockObject{
			slack.NewOptionBlockObject(actionLogin, plain("Login"), nil),
			slack.NewOptionBlockObject(actionAbout, plain("About"), nil),
		}
	}
	selectEl := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Choose an option"), actionMenu, options...)
	return []slack.Block{
		slack.NewSectionBlock(markdown(":zap: *Enthusiasm* — peer rewards on NEAR"), nil, nil),
		slack.NewActionBlock("bot-menu", selectEl),
	}
}

// BalanceBlocks renders the reward balance; the withdraw action is offered
// only when there is something to withdraw.
func BalanceBlocks(amount *near.Amount) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(markdown(":moneybag:==== *BALANCE* ====:moneybag: "), nil, nil),
		slack.NewSectionBlock(markdown(fmt.Sprintf("Your balance is *%s Near*", amount.FormatNEAR())), nil, nil),
	}
	if !amount.IsZero() {
		blocks = append(blocks, slack.NewActionBlock("balance-actions",
			primaryButton(actionWithdraw, "Withdraw"), menuButton()))
	} else {
		blocks = append(blocks, slack.NewActionBlock("balance-actions", menuButton()))
	}
	return blocks
}

// NominationRow is one nominee entry in a nomination table.
type NominationRow struct {
	SlackUser string `json:"slack_user"`
	Votes     int    `json:"votes"`
}

// NominationTableBlocks renders the active nomination with its vote table.
// Rows are rendered in the order given (the router sorts ascending by votes).
func NominationTableBlocks(title string, rows []NominationRow, isValid bool) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(markdown(":trophy: *Nominations*"), nil, nil),
	}
	if isValid {
		blocks = append(blocks, slack.NewSectionBlock(
			markdown(fmt.Sprintf("*_%s _*", title)),
			nil,
			slack.NewAccessory(button(actionNominationEnd, "Finish")),
		))
	} else {
		blocks = append(blocks, slack.NewContextBlock("",
			plain("No active nominations :man-shrugging:")))
	}

	if len(rows) > 0 {
		for _, row := range rows {
			blocks = append(blocks, slack.NewSectionBlock(
				markdown(fmt.Sprintf("<@%s> - %d votes", row.SlackUser, row.Votes)), nil, nil))
		}
	} else if isValid {
		blocks = append(blocks, slack.NewContextBlock("",
			plain("No votes yet :yawning_face:")))
	}

	return append(blocks, slack.NewDividerBlock())
}

// ConfirmationBlocks renders a text section followed by an optional action row.
func ConfirmationBlocks(text string, buttons ...*slack.ButtonBlockElement) []slack.Block {
	blocks := []slack.Block{slack.NewSectionBlock(markdown(text), nil, nil)}
	if len(buttons) > 0 {
		elements := make([]slack.BlockElement, len(buttons))
		for i, b := range buttons {
			elements[i] = b
		}
		blocks = append(blocks, slack.NewActionBlock("confirmation-actions", elements...))
	}
	return blocks
}

// BackToMenuBlocks is the common reply shape: a text section plus the
// back-to-menu button.
func BackToMenuBlocks(text string) []slack.Block {
	return ConfirmationBlocks(text, menuButton())
}

// NetworkSelectBlocks asks the user to pick the network to authorize on.
func NetworkSelectBlocks() []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(markdown("Please select the network:"), nil, nil),
		slack.NewActionBlock("network-select",
			primaryButton(actionNetworkMain, "NEAR"),
			menuButton()),
	}
}

// AboutBlocks describes the bot.
func AboutBlocks() []slack.Block {
	return BackToMenuBlocks("*Enthusiasm* connects this workspace to the NEAR blockchain: " +
		"reward teammates with tokens for work you appreciate, nominate them for " +
		"end-of-period awards, and let the team vote — all transfers are real and transparent.")
}

// NominationModal is the nomination creation dialog. channelID rides in the
// private metadata so the submission handler knows where the flow started.
func NominationModal(channelID string) slack.ModalViewRequest {
	titleInput := slack.NewInputBlock(nominationTitleBlock,
		plain("Nomination title"), nil,
		slack.NewPlainTextInputBlockElement(plain(`e.g. "The most valuable player"`), nominationTitleAction))
	amountInput := slack.NewInputBlock(nominationAmountBlock,
		plain("Reward amount, Near tokens"), nil,
		slack.NewPlainTextInputBlockElement(plain("e.g. 10"), nominationAmountAction))

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      nominationModalCallback,
		PrivateMetadata: channelID,
		Title:           plain("New nomination"),
		Submit:          plain("Create"),
		Close:           plain("Cancel"),
		Blocks:          slack.Blocks{BlockSet: []slack.Block{titleInput, amountInput}},
	}
}

// RewardPromptBlocks asks how many tokens to send to the reacted-to teammate.
func RewardPromptBlocks(targetUser string) []slack.Block {
	input := slack.NewInputBlock("send-rewards-amount",
		plain(fmt.Sprintf("How many Near tokens you would like to send to <@%s>?", targetUser)), nil,
		slack.NewPlainTextInputBlockElement(plain("Amount in Near"), actionSendRewards))
	input.DispatchAction = true
	return []slack.Block{input}
}

// VotingRequestBlocks is the per-member DM asking for a vote.
func VotingRequestBlocks(member, title string) []slack.Block {
	selectEl := slack.NewOptionsSelectBlockElement(slack.OptTypeConversations,
		plain("Select a user"), actionNominationVote)
	selectEl.Filter = &slack.SelectBlockElementFilter{
		Include:         []string{"im"},
		ExcludeBotUsers: true,
	}
	return []slack.Block{
		slack.NewSectionBlock(markdown(
			fmt.Sprintf("Dear <@%s> Please vote for the nomination *\"%s\"*", member, title)), nil, nil),
		slack.NewActionBlock("nomination-vote", selectEl),
	}
}

// WinnerBlocks congratulates the nomination winner.
func WinnerBlocks(nomination string) []slack.Block {
	return ConfirmationBlocks(
		fmt.Sprintf("Congratulations! You have won in the nominaton *\"%s\"*! :trophy:", nomination),
		primaryButton(actionWithdraw, "Withdraw"),
		menuButton())
}

// NotAuthorizedBlocks is shown to users without a linked wallet.
func NotAuthorizedBlocks() []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(markdown(
			"It seems you are not authorized yet, to start working with Enthusiasm please call @enthusiasm in the chat"), nil, nil),
	}
}

// NominationHelpText explains the nomination workflow.
const NominationHelpText = "This functionality provides the ability to nominate any teammate for a reward " +
	"at the end of a working period (sprint/month/year).\nNomination represents titles like " +
	`"The most valuable player", "Soul of a Team" etc, and the number of the Near protocol tokens ` +
	"as a monetary reward.\nTeammates can vote for their nominees with the help of the Near blockchain, " +
	"which makes this process completely easy and transparent. "
