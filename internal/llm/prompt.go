package llm

const describePromptChinese = `请详细描述这张图片的内容，包括：
1. 图片中的主要对象和场景
2. 任何可见的文字内容
3. 图片的布局和结构
4. 如果有表格，请描述表格的结构和内容
5. 如果有图表，请描述图表的数据和趋势

请用中文回答，描述要准确、详细。`

const describePromptEnglish = "Please describe this image in detail."

// userQueryMarker precedes the restated user query when Chat folds a system
// prompt into the last user turn: system + query + userQueryMarker + query.
const userQueryMarker = "user query: "

// DefaultPrompt returns the describe prompt for lang.
func DefaultPrompt(lang Language) string {
	if ParseLanguage(string(lang)) == LanguageChinese {
		return describePromptChinese
	}
	return describePromptEnglish
}
