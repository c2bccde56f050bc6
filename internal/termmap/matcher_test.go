package termmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tm := TermMap{
		"attention head":   "注意力头",
		"Transformer":      "Transformer 模型",
		"gradient descent": "梯度下降",
		"ablation":         "消融",
		"residual stream":  "残差流",
	}

	texts := []string{
		"Each attention head reads from the residual stream.",
		"We train the Transformer end to end.",
		"This is just a regular line.",
	}

	result := Match(tm, texts)

	assert.Len(t, result.Matched, 3)
	assert.Equal(t, "注意力头", result.Matched["attention head"])
	assert.Equal(t, "残差流", result.Matched["residual stream"])
	assert.Equal(t, "Transformer 模型", result.Matched["Transformer"])

	_, hasGD := result.Matched["gradient descent"]
	assert.False(t, hasGD)
	_, hasAblation := result.Matched["ablation"]
	assert.False(t, hasAblation)
	assert.Equal(t, []string{"Transformer", "attention head", "residual stream"}, result.Terms())
}

func TestMatch_EmptyTermMap(t *testing.T) {
	result := Match(TermMap{}, []string{"some text"})
	assert.Empty(t, result.Matched)
}

func TestMatch_EmptyTexts(t *testing.T) {
	tm := TermMap{"hello": "world"}
	result := Match(tm, []string{})
	assert.Empty(t, result.Matched)
}

func TestMatch_CaseSensitive(t *testing.T) {
	tm := TermMap{
		"BERT": "BERT 模型",
	}

	result := Match(tm, []string{"bert is a name"})
	assert.Empty(t, result.Matched)

	result = Match(tm, []string{"BERT is a model"})
	assert.Len(t, result.Matched, 1)
}

func TestMatch_WordBoundary(t *testing.T) {
	tm := TermMap{
		"loss": "损失",
	}

	// "loss" inside "lossless" should not match
	result := Match(tm, []string{"A lossless encoding."})
	assert.Empty(t, result.Matched)

	result = Match(tm, []string{"The loss decreases."})
	assert.Len(t, result.Matched, 1)
	assert.Equal(t, "损失", result.Matched["loss"])

	result = Match(tm, []string{"We minimise the loss"})
	assert.Len(t, result.Matched, 1)

	result = Match(tm, []string{"loss curves are shown"})
	assert.Len(t, result.Matched, 1)
}

func TestMatch_WordBoundary_MultiWord(t *testing.T) {
	tm := TermMap{
		"GPT": "GPT",
	}

	// a later standalone occurrence still matches after an embedded one
	result := Match(tm, []string{"GPTQ quantises weights"})
	assert.Empty(t, result.Matched)

	result = Match(tm, []string{"GPTQ quantises GPT weights"})
	assert.Len(t, result.Matched, 1)
}

func TestMatch_WordBoundary_Punctuation(t *testing.T) {
	tm := TermMap{
		"LoRA": "低秩适配",
	}

	result := Match(tm, []string{"We use LoRA!"})
	assert.Len(t, result.Matched, 1)

	result = Match(tm, []string{"(LoRA)"})
	assert.Len(t, result.Matched, 1)

	result = Match(tm, []string{`"LoRA"`})
	assert.Len(t, result.Matched, 1)
}

func TestMatch_MultipleTextsOneTerm(t *testing.T) {
	tm := TermMap{
		"encoder": "编码器",
	}

	result := Match(tm, []string{"the encoder here", "the encoder there"})
	assert.Len(t, result.Matched, 1)
}
