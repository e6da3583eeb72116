package testutil

// Fixtures are wire payloads as the Liminal server sends them, before the
// {"data": ...} envelope is applied.

// PromptText is the sample prompt used across the prompt fixtures.
const PromptText = "Write a short marketing email for a banking customer Jane Gansbuhler, " +
	"whose email address is egansbuhler0@pinterest.com and who lives at 14309 Lindbergh Circle " +
	"Alexander City Alabama. Jane was born on 6/5/1961 and identifies as Female"

// CleansedText is PromptText with its sensitive spans replaced.
const CleansedText = "Write a short marketing email for a banking customer PERSON_0, " +
	"whose email address is EMAIL_ADDRESS_0 and who lives at LOCATION_0. PERSON_1 was born on " +
	"DATE_0 and identifies as Female"

// HydratedText is the LLM response after its placeholders are restored.
const HydratedText = "Tell Jane Gansbuhler that we are grateful for their business."

// FixtureModelConnection returns an active model connection.
func FixtureModelConnection() map[string]any {
	return map[string]any{
		"id":              3,
		"modelInstanceId": 5,
		"model":           "gpt-4o",
		"providerKey":     "openai",
		"params":          map[string]any{"temperature": "0.2"},
		"maskedApiKey":    "sk-****abcd",
		"createdAt":       "2024-03-18T23:20:02.112Z",
		"updatedAt":       "2024-03-18T23:20:02.112Z",
		"deletedAt":       nil,
	}
}

// FixtureModelInstances returns one instance with a connection and one
// without.
func FixtureModelInstances() []map[string]any {
	return []map[string]any{
		{
			"id":              5,
			"policyGroupId":   1,
			"name":            "My Model",
			"modelConnection": FixtureModelConnection(),
			"createdAt":       "2024-03-18T23:20:02.112Z",
			"updatedAt":       "2024-03-18T23:20:02.112Z",
			"deletedAt":       nil,
		},
		{
			"id":              6,
			"policyGroupId":   1,
			"name":            "Disconnected Model",
			"modelConnection": nil,
			"createdAt":       "2024-03-18T23:20:02.112Z",
			"updatedAt":       "2024-03-18T23:20:02.112Z",
		},
	}
}

// FixtureThread returns a thread bound to model instance 5.
func FixtureThread() map[string]any {
	return map[string]any{
		"id":              167,
		"modelInstanceId": 5,
		"userId":          2,
		"name":            "My thread",
		"source":          "sdk",
		"type":            "default",
		"createdAt":       "2024-03-18T23:22:17.976Z",
		"updatedAt":       "2024-03-18T23:22:17.976Z",
		"deletedAt":       nil,
	}
}

// FixtureThreads returns the thread list.
func FixtureThreads() []map[string]any {
	second := FixtureThread()
	second["id"] = 168
	second["name"] = "Trainer thread"
	second["type"] = "trainer"
	return []map[string]any{FixtureThread(), second}
}

// FixtureFindings returns the analysis of PromptText.
func FixtureFindings() map[string]any {
	finding := func(start, end int, text, typ string, score float64) map[string]any {
		return map[string]any{
			"start":         start,
			"end":           end,
			"origin":        "presidio",
			"score":         score,
			"scoreCategory": "HIGH",
			"text":          text,
			"type":          typ,
			"policyAction":  "MASK",
		}
	}
	return map[string]any{
		"findings": []map[string]any{
			finding(53, 68, "Jane Gansbuhler", "PERSON", 0.85),
			finding(95, 121, "egansbuhler0@pinterest.com", "EMAIL_ADDRESS", 1),
			finding(140, 188, "14309 Lindbergh Circle Alexander City Alabama", "LOCATION", 0.85),
			finding(190, 194, "Jane", "PERSON", 0.85),
			finding(207, 215, "6/5/1961", "DATE", 0.85),
		},
	}
}

// FixtureCleanse returns the cleansed form of PromptText.
func FixtureCleanse() map[string]any {
	token := func(start, end int, typ string) map[string]any {
		return map[string]any{"start": start, "end": end, "entity_type": typ}
	}
	return map[string]any{
		"text": CleansedText,
		"items": []map[string]any{
			token(53, 61, "PERSON"),
			token(88, 103, "EMAIL_ADDRESS"),
			token(122, 132, "LOCATION"),
			token(134, 142, "PERSON"),
			token(155, 161, "DATE"),
		},
		"text_hashed": "Write a short marketing email for a banking customer 8a3f, whose email address is 19bc and who lives at 77d0. 2e41 was born on c6f9 and identifies as Female",
		"items_hashed": []map[string]any{
			token(53, 57, "PERSON"),
			token(82, 86, "EMAIL_ADDRESS"),
			token(105, 109, "LOCATION"),
			token(111, 115, "PERSON"),
			token(128, 132, "DATE"),
		},
	}
}

// FixtureHydrate returns the hydrated form of "Tell PERSON_0 ...".
func FixtureHydrate() map[string]any {
	return map[string]any{
		"text": HydratedText,
		"items": []map[string]any{
			{"start": 5, "end": 20, "entity_type": "PERSON"},
		},
	}
}

// FixtureContextHistory returns the placeholder history of thread 167.
func FixtureContextHistory() []map[string]any {
	return []map[string]any{
		{"deidText": "PERSON_0", "hashText": "8a3f"},
		{"deidText": "EMAIL_ADDRESS_0", "hashText": "19bc"},
	}
}

// FixtureSubmit returns a complete Submit response in thread 167.
func FixtureSubmit() map[string]any {
	return map[string]any{
		"threadId":                   167,
		"chatId":                     912,
		"inputText":                  PromptText,
		"deidentifiedInputTextData":  FixtureCleanse(),
		"deidentifiedContextHistory": FixtureContextHistory(),
		"llmModel":                   "gpt-4o",
		"rawLLMResponseText":         "Dear PERSON_0, thank you for banking with us.",
		"reidentifiedLLMResponseText": "Dear Jane Gansbuhler, thank you for banking with us.",
		"reidentifiedLLMResponseItems": []map[string]any{
			{"start": 5, "end": 20, "entity_type": "PERSON", "text": "Jane Gansbuhler"},
		},
	}
}

// FixtureStreamLines returns a streamed response as the server writes it.
// The last line carries the finish reason.
func FixtureStreamLines() []string {
	return []string{
		`{"content":"Dear Jane","finish_reason":null}`,
		`{"content":" Gansbuhler,","finish_reason":null}`,
		``,
		`{"content":" thank you.","finish_reason":"stop"}`,
	}
}

// FixtureUser returns the users/me payload.
func FixtureUser() map[string]any {
	return map[string]any{
		"id":    2,
		"email": "test@example.com",
		"name":  "Test User",
	}
}
