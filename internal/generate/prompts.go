package generate

import (
	"strings"

	"minutes/internal/task"
)

const minutesSystemJA = `あなたは優秀な議事録作成者です。
与えられたテキストから以下の形式で議事録を作成してください：

# 議事録

## 開催情報
- 日時：[日時を記載]
- 議題：[議題を特定して記載]

## 参加者
[参加者が言及されている場合は記載]

## 主な議題と決定事項
[重要な議題と決定事項を箇条書きで記載]

## 詳細な議事内容
[議事の詳細を段落分けして記載]

## 次回のアクション項目
[次回までのタスクや宿題が言及されている場合は記載]

## 次回予定
[次回の予定が言及されている場合は記載]
`

const minutesSystemEN = `You are an expert minute-taker.
Write meeting minutes from the supplied transcript using this Markdown layout:

# Meeting Minutes

## Meeting Information
- Date: [date and time]
- Agenda: [identify the agenda]

## Participants
[list participants if they are mentioned]

## Key Topics and Decisions
[bullet the important topics and decisions]

## Detailed Discussion
[describe the discussion in paragraphs]

## Action Items
[tasks or homework due before the next meeting, if mentioned]

## Next Meeting
[next meeting schedule, if mentioned]
`

const editSystemJA = `あなたは議事録の編集者です。
ユーザーの指示に従って議事録を修正し、修正後の議事録全文のみをMarkdownで出力してください。
指示に関係のない部分は変更しないでください。説明や前置きは不要です。`

const editSystemEN = `You edit meeting minutes.
Apply the user's instruction to the minutes and output only the complete revised minutes in Markdown.
Leave everything the instruction does not mention unchanged. Do not add explanations.`

func isJapanese(language string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(language)), "ja")
}

// MinutesPrompt builds the request that turns a transcript into minutes.
// Hints, when present, are prepended as meeting context.
func MinutesPrompt(transcript string, hints task.Hints, language string) Prompt {
	system := minutesSystemEN
	if isJapanese(language) {
		system = minutesSystemJA
	}

	var user strings.Builder
	summary := strings.TrimSpace(hints.Summary)
	terms := strings.TrimSpace(hints.Terms)
	if summary != "" || terms != "" {
		if isJapanese(language) {
			user.WriteString("【会議の補足情報】\n")
			if summary != "" {
				user.WriteString("概要: " + summary + "\n")
			}
			if terms != "" {
				user.WriteString("用語・人物: " + terms + "\n")
			}
			user.WriteString("\n【文字起こし】\n")
		} else {
			user.WriteString("Meeting context:\n")
			if summary != "" {
				user.WriteString("Summary: " + summary + "\n")
			}
			if terms != "" {
				user.WriteString("Terms and people: " + terms + "\n")
			}
			user.WriteString("\nTranscript:\n")
		}
	}
	user.WriteString(strings.TrimSpace(transcript))

	return Prompt{System: system, User: user.String()}
}

// EditPrompt builds the request that applies a natural-language instruction
// to the current minutes.
func EditPrompt(current, instruction, language string) Prompt {
	if isJapanese(language) {
		return Prompt{
			System: editSystemJA,
			User:   "【指示】\n" + strings.TrimSpace(instruction) + "\n\n【現在の議事録】\n" + current,
		}
	}
	return Prompt{
		System: editSystemEN,
		User:   "Instruction:\n" + strings.TrimSpace(instruction) + "\n\nCurrent minutes:\n" + current,
	}
}
