package pipeline

import (
	"fmt"
	"strings"
)

// The instructions below double as retrieval queries. Their constraints are
// natural-language only; NormalizeTerm and NormalizeTags clean up answers
// that drift from them.

func classifyInstruction(terms []string, language string) string {
	return fmt.Sprintf("Pick one of the following list of categories: %s. "+
		"Write the answer only in %s language. "+
		"Don't add any explanation for the choice in the answer. "+
		"Don't add any note after the word in the answer. "+
		"Don't add any space before the word in the answer. "+
		"Don't add in the answer the translation of the word in a different language after chosen word. "+
		"Give the answer exactly as a single word from the list.",
		strings.Join(terms, ", "), language)
}

func promptInstruction(question, language string) string {
	return fmt.Sprintf("%s. Write the answer only in %s language. Don't add any translation to the answer.",
		strings.TrimRight(question, ". "), language)
}

func summaryInstruction(words int, language string) string {
	return fmt.Sprintf("Write a short summary of the text in %d words only in %s.", words, language)
}

func tagsInstruction(n int, language string) string {
	return fmt.Sprintf("Provide %[1]d words to categorize the document in language %[2]s in a single line. "+
		"Use only language %[2]s for these %[1]d words in the answer. "+
		"Don't add any explanation for the words in the answer. "+
		"Don't add any note after the list of words in the answer. "+
		"Don't use bullets or numbers to list the words in the answer. "+
		"Don't add in the answer the translation of the words in a different language after the list of words. "+
		"Give the answer exactly as a list of %[1]d words in language %[2]s separated with comma and without ending dot.",
		n, language)
}

func describeInstruction(language string) string {
	return fmt.Sprintf("Describe the picture in a few sentences only in %s language. Don't add any translation to the answer.", language)
}
