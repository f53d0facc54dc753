package call

import "github.com/square-key-labs/voicecore-ai/src/agent"

// repeatPrompts are sent to the model as a text nudge when the thinking gap
// exhausted every filler; the model speaks the actual request.
var repeatPrompts = map[agent.Language]string{
	agent.English:  "(The line went quiet. Briefly and politely ask the caller to repeat what they said.)",
	agent.Hindi:    "(Line par chuppi thi. Caller se vinamrata se Hindi mein dobara bolne ka anurodh karein.)",
	agent.Marathi:  "(Line shant hoti. Caller la namrapane Marathi madhe punha sangayla sanga.)",
	agent.Hinglish: "(The line went quiet. Politely ask the caller in Hinglish to say that once more.)",
	agent.Tamil:    "(Line amaidhiyaga irundhadhu. Caller-ai Tamil-il meendum sollumaru payndhu kelungal.)",
	agent.Telugu:   "(Line nisshabdamga undi. Caller ni Telugu lo malli cheppamani maryadaga adagandi.)",
	agent.Kannada:  "(Line maunavagittu. Caller annu Kannada dalli matte helalu vinayavagi keli.)",
}

// apologyPrompts ask the model to close the call gracefully when a terminal
// failure still leaves both channels usable.
var apologyPrompts = map[agent.Language]string{
	agent.English:  "(A technical problem requires ending this call. Apologize briefly and say goodbye.)",
	agent.Hindi:    "(Takniki samasya ke kaaran call band karni hogi. Hindi mein sankshipt maafi maangkar alvida kahein.)",
	agent.Marathi:  "(Tantrik adachanimule call band karava lagel. Marathi madhe maafi magun nirop ghya.)",
	agent.Hinglish: "(A technical issue means we must end the call. Apologize briefly in Hinglish and say goodbye.)",
	agent.Tamil:    "(Thozhilnutpa sikkalal call mudikka vendum. Tamil-il surukkamaga mannippu kettu vidai perungal.)",
	agent.Telugu:   "(Saanketika samasya valla call mugiyali. Telugu lo klupthamga kshaminchamani cheppi veedkolu cheppandi.)",
	agent.Kannada:  "(Tantrika samasyeyinda call mugisabeku. Kannada dalli sankshiptavagi kshame keli vidaya heli.)",
}

func repeatPrompt(lang agent.Language) string {
	if p, ok := repeatPrompts[lang]; ok {
		return p
	}
	return repeatPrompts[agent.English]
}

func apologyPrompt(lang agent.Language) string {
	if p, ok := apologyPrompts[lang]; ok {
		return p
	}
	return apologyPrompts[agent.English]
}
