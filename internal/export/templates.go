package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"grimoire/api/internal/monster"
)

//go:embed templates/*.html
var templateFS embed.FS

var statblockTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"join":  strings.Join,
		"mod":   AbilityModifier,
	}

	templateContent, err := templateFS.ReadFile("templates/statblock.html")
	if err != nil {
		// Fallback to built-in template if file not found
		statblockTemplate = template.Must(template.New("statblock").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	statblockTemplate = template.Must(template.New("statblock").Funcs(funcMap).Parse(string(templateContent)))
}

// AbilityModifier formats the modifier for an ability score, "+4" or "-1".
func AbilityModifier(score int) string {
	mod := (score - 10) / 2
	if score < 10 && (score-10)%2 != 0 {
		// Integer division truncates toward zero; modifiers round down.
		mod--
	}
	if mod >= 0 {
		return fmt.Sprintf("+%d", mod)
	}
	return fmt.Sprintf("%d", mod)
}

// TemplateData holds data for stat-block template rendering.
type TemplateData struct {
	Name    string
	Monster monster.Monster
}

// RenderStatblockHTML renders the stat-block template for a monster.
func RenderStatblockHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := statblockTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: Georgia, serif; max-width: 800px; margin: 2rem auto; }
    h1 { color: #7a200d; border-bottom: 2px solid #7a200d; padding-bottom: 0.25rem; }
    .type { font-style: italic; color: #444; }
    .abilities { display: flex; gap: 1.5rem; margin: 1rem 0; }
    .abilities div { text-align: center; }
    .feature-name { font-weight: bold; font-style: italic; }
    .section { color: #7a200d; border-bottom: 1px solid #7a200d; margin-top: 1.5rem; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  <p class="type">{{.Monster.Type}}</p>
  <p><strong>Armor Class</strong> {{.Monster.AC.Value}}{{if .Monster.AC.Notes}} ({{.Monster.AC.Notes}}){{end}}<br>
     <strong>Hit Points</strong> {{.Monster.HP.Value}}{{if .Monster.HP.Notes}} ({{.Monster.HP.Notes}}){{end}}<br>
     {{if .Monster.Speed}}<strong>Speed</strong> {{join .Monster.Speed ", "}}<br>{{end}}
     <strong>Challenge</strong> {{.Monster.Challenge}}</p>
  <div class="abilities">
    <div><strong>STR</strong><br>{{.Monster.Abilities.Str}} ({{mod .Monster.Abilities.Str}})</div>
    <div><strong>DEX</strong><br>{{.Monster.Abilities.Dex}} ({{mod .Monster.Abilities.Dex}})</div>
    <div><strong>CON</strong><br>{{.Monster.Abilities.Con}} ({{mod .Monster.Abilities.Con}})</div>
    <div><strong>INT</strong><br>{{.Monster.Abilities.Int}} ({{mod .Monster.Abilities.Int}})</div>
    <div><strong>WIS</strong><br>{{.Monster.Abilities.Wis}} ({{mod .Monster.Abilities.Wis}})</div>
    <div><strong>CHA</strong><br>{{.Monster.Abilities.Cha}} ({{mod .Monster.Abilities.Cha}})</div>
  </div>
  {{if .Monster.Senses}}<p><strong>Senses</strong> {{join .Monster.Senses ", "}}</p>{{end}}
  {{if .Monster.Languages}}<p><strong>Languages</strong> {{join .Monster.Languages ", "}}</p>{{end}}
  {{range .Monster.Traits}}
  <p><span class="feature-name">{{.Name}}{{if .Usage}} ({{.Usage}}){{end}}.</span> {{.Content}}</p>
  {{end}}
  {{if .Monster.Actions}}<h2 class="section">Actions</h2>
  {{range .Monster.Actions}}
  <p><span class="feature-name">{{.Name}}{{if .Usage}} ({{.Usage}}){{end}}.</span> {{.Content}}</p>
  {{end}}{{end}}
  {{if .Monster.Reactions}}<h2 class="section">Reactions</h2>
  {{range .Monster.Reactions}}
  <p><span class="feature-name">{{.Name}}{{if .Usage}} ({{.Usage}}){{end}}.</span> {{.Content}}</p>
  {{end}}{{end}}
  {{if .Monster.LegendaryActions}}<h2 class="section">Legendary Actions</h2>
  {{range .Monster.LegendaryActions}}
  <p><span class="feature-name">{{.Name}}{{if .Usage}} ({{.Usage}}){{end}}.</span> {{.Content}}</p>
  {{end}}{{end}}
</body>
</html>`
