package rag

import "strings"

// DefaultStyle is used for unknown or empty style tags.
const DefaultStyle = "american"

// tones describes the voice the model is asked to speak in, by accent.
var tones = map[string]string{
	"american": "casual and friendly",
	"uk":       "polite and formal",
	"mexican":  "warm and expressive",
	"french":   "elegant",
	"irish":    "cheerful",
	"indian":   "respectful",
	"african":  "warm",
	"italian":  "expressive",
	"german":   "precise",
}

// Tone returns the tone for a style tag, "friendly" when unknown.
func Tone(style string) string {
	if t, ok := tones[strings.ToLower(style)]; ok {
		return t
	}
	return "friendly"
}

// greetings take the user's name.
var greetings = map[string][]string{
	"american": {
		"Hey %s! How can I help you today?",
		"Hi %s! What quote are you looking for?",
		"Hello %s! Ready to discover some wisdom?",
	},
	"uk": {
		"Good day, %s! How may I assist you?",
		"Hello %s! What wisdom shall we seek today?",
		"Greetings %s! Ready for some brilliant quotes?",
	},
	"irish": {
		"Top of the morning, %s! What can I do for you?",
		"Hello there, %s! Looking for some wise words?",
		"Good day to you, %s! What quote shall we find?",
	},
	"indian": {
		"Namaste %s! How can I help you today?",
		"Hello %s! What wisdom are you seeking?",
		"Greetings %s! Ready to explore quotes?",
	},
	"african": {
		"Hello %s! What can I do for you today?",
		"Greetings %s! Looking for some wisdom?",
		"Welcome %s! What quote interests you?",
	},
	"mexican": {
		"¡Hola %s! ¿Cómo puedo ayudarte?",
		"¡Buenos días %s! ¿Qué cita buscas?",
		"¡Saludos %s! ¿Listo para descubrir sabiduría?",
	},
	"french": {
		"Bonjour %s! Comment puis-je vous aider?",
		"Salut %s! Quelle citation cherchez-vous?",
		"Bienvenue %s! Prêt pour des citations?",
	},
	"italian": {
		"Ciao %s! Come posso aiutarti?",
		"Salve %s! Quale citazione cerchi?",
		"Benvenuto %s! Pronto per le citazioni?",
	},
	"german": {
		"Guten Tag %s! Wie kann ich helfen?",
		"Hallo %s! Welches Zitat suchen Sie?",
		"Willkommen %s! Bereit für Zitate?",
	},
}

// fallbacks take ", name" or "" when the user is anonymous.
var fallbacks = map[string][]string{
	"american": {
		"Sorry%s, I couldn't find a quote for that. Try rephrasing?",
		"Hmm%s, no matches. Want to try different keywords?",
	},
	"uk": {
		"Apologies%s, I couldn't locate a suitable quote. Perhaps rephrase?",
		"I'm afraid%s I found nothing. Try different terms?",
	},
	"mexican": {
		"Lo siento%s, no encontré una cita. ¿Intentar de nuevo?",
		"Disculpa%s, sin resultados. ¿Otra búsqueda?",
	},
	"french": {
		"Désolé%s, aucune citation trouvée. Reformuler?",
		"Pardon%s, pas de résultats. Essayer autrement?",
	},
	"italian": {
		"Scusa%s, nessuna citazione trovata. Riformulare?",
		"Mi dispiace%s, nessun risultato. Provare diversamente?",
	},
	"german": {
		"Entschuldigung%s, kein Zitat gefunden. Umformulieren?",
		"Tut mir leid%s, keine Ergebnisse. Anders versuchen?",
	},
}

// NoStyleFallback is the fallback for requests without a style tag.
const NoStyleFallback = "I couldn't find relevant quotes about that. Try asking about something else!"

func lookup(set map[string][]string, style string) []string {
	if s, ok := set[strings.ToLower(style)]; ok {
		return s
	}
	return set[DefaultStyle]
}
