package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const systemPrompt = "You are a strict JSON generator. Return ONLY a JSON object that matches the schema."

// buildBatchPrompt 每行一个 [index] "folder name"
func buildBatchPrompt(names []string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert system for analyzing anime folder names.\n")
	sb.WriteString("Extract metadata from the provided folder names and return the result in strict JSON format.\n\n")
	sb.WriteString("Input Format:\n[Index] \"Folder Name\"\n\n")
	sb.WriteString("Requirements:\n")
	sb.WriteString("1. Identify the anime title in Japanese (titleJP), Traditional Chinese (titleTW), Simplified Chinese (titleCN), and English (titleEN).\n")
	sb.WriteString("2. Extract the Year (e.g., 2023).\n")
	sb.WriteString("3. Identify the Type (TV, OVA, Movie, Special). Default to 'TV' if unsure.\n")
	sb.WriteString("4. Assign a Confidence score (0.0 to 1.0).\n")
	sb.WriteString("5. Ignore technical tags in brackets (resolution, codec, source, episode ranges). Use the clean title only.\n")
	sb.WriteString("6. If a field is unknown, return an empty string instead of guessing.\n")
	sb.WriteString("7. Return ONLY a JSON object with a property 'items' containing the list of results, no markdown.\n\n")
	sb.WriteString(`JSON Schema:
{
  "items": [
    {
      "index": 0,
      "id": "unique_id_or_hash",
      "titleJP": "Japanese Title",
      "titleCN": "Simplified Chinese Title",
      "titleTW": "Traditional Chinese Title",
      "titleEN": "English Title",
      "type": "TV",
      "year": 2023,
      "confidence": 0.95
    }
  ]
}
`)
	sb.WriteString("\nFolder List to Analyze:\n")
	for i, name := range names {
		fmt.Fprintf(&sb, "[%d] %q\n", i, name)
	}
	return sb.String()
}

// cleanReply 去掉 ```json 代码块包裹
func cleanReply(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// looseString 模型有时把 id 写成数字
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	*s = looseString(strings.TrimSpace(string(data)))
	return nil
}

// looseInt 接受 2023 或 "2023"，无法解析时视为没有
type looseInt struct {
	value int
	ok    bool
}

func (n *looseInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		n.value, n.ok = v, true
	}
	return nil
}

type batchItem struct {
	Index      int         `json:"index"`
	ID         looseString `json:"id"`
	TitleJP    string      `json:"titleJP"`
	TitleCN    string      `json:"titleCN"`
	TitleTW    string      `json:"titleTW"`
	TitleEN    string      `json:"titleEN"`
	Type       string      `json:"type"`
	Year       looseInt    `json:"year"`
	Confidence float64     `json:"confidence"`
}

type batchReply struct {
	Items []batchItem `json:"items"`
}

// parseBatchReply 回复无法解析时返回全 nil 的结果，不视为错误
func parseBatchReply(text string, count int) []*Metadata {
	results := emptyResults(count)

	cleaned := cleanReply(text)
	if cleaned == "" {
		return results
	}
	var reply batchReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return results
	}

	for _, item := range reply.Items {
		if item.Index < 0 || item.Index >= count {
			continue
		}
		m := &Metadata{
			ID:         string(item.ID),
			TitleJP:    strings.TrimSpace(item.TitleJP),
			TitleCN:    strings.TrimSpace(item.TitleCN),
			TitleTW:    strings.TrimSpace(item.TitleTW),
			TitleEN:    strings.TrimSpace(item.TitleEN),
			Type:       strings.TrimSpace(item.Type),
			Confidence: clampConfidence(item.Confidence),
		}
		if item.Year.ok {
			year := item.Year.value
			m.Year = &year
		}
		results[item.Index] = m
	}
	return results
}

// clampConfidence 限制在 [0,1]，NaN 视为 0
func clampConfidence(c float64) float64 {
	switch {
	case c != c || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
