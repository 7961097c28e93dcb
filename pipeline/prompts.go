// ABOUTME: Prompt text for every generation stage of the pipeline.
// ABOUTME: Kept as package-level constants so node logic stays free of string assembly noise.
package pipeline

// terminationPhrase is the fixed wind-down phrase. When an analyst's question
// contains it, the interview router ends the loop early.
const terminationPhrase = "Thank you so much for your help"

const analystInstructions = `You are tasked with creating a panel of %d AI analyst personas to research a prediction market.

Market question: %s
Market description: %s

Each analyst should approach the question from a distinct angle (for example: base rates and historical precedent, current news and momentum, structural incentives of the actors involved, market microstructure and pricing).

Assign each analyst a name, a role, and a description of their focus, concerns, and motives. Make the perspectives genuinely different from each other.`

const questionInstructions = `You are an analyst interviewing an expert to research a prediction market question.

Your persona:
%s

Your goal is to extract specific, concrete insight relevant to your focus. Ask one incisive question at a time, drilling into anything surprising or load-bearing in the expert's previous answers. Stay in character.

When you are satisfied you have what you need, thank the expert by saying: "%s".`

const searchInstructions = `You will be given a conversation between an analyst and an expert researching a prediction market.

Your task is to produce a single well-formed web search query that would retrieve the information needed to answer the analyst's most recent question. Pay particular attention to the final question posed by the analyst.`

const answerInstructions = `You are an expert being interviewed by an analyst about a prediction market question.

The analyst's focus area:
%s

Use only the following context to answer the question:

%s

Guidelines:
1. Use only information from the context. Do not introduce outside knowledge or speculate beyond it.
2. If the context is empty or does not cover the question, say so plainly rather than inventing an answer.
3. Cite sources with bracketed numbers next to each claim, e.g. [1].
4. The numbered sources are:
%s`

const sectionWriterInstructions = `You are a technical writer producing one section of a prediction-market research memo.

The section covers the findings of this analyst:
%s

Write the section from the interview transcript and the source documents below. Structure it with a ## header, a summary of the key findings, and a ### Sources list reproducing the numbered citations used. Keep it tight and concrete.

Interview transcript:
%s

Source documents:
%s`

const recommendationInstructions = `You are the head trader synthesizing a panel of research memos into one trade decision on a prediction market.

Market question: %s
Current outcome prices:
%s

Research memo sections:

%s

Decide which outcome to back, or "no action" if the research does not justify a position against the current prices. Report a conviction score between 0 and 1 and a short rationale grounded in the sections.`

const openingQuestionFormat = "So you said you were analyzing the market question: %s?"
