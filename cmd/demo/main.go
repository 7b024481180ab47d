// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/Corphon/SceneScriptForm/internal/app"
	"github.com/Corphon/SceneScriptForm/internal/config"
	"github.com/Corphon/SceneScriptForm/internal/di"
	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/services"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

var scanner = bufio.NewScanner(os.Stdin)

// errInputClosed 标准输入已结束 (EOF 或读取失败)
var errInputClosed = errors.New("input closed")

func main() {
	fmt.Println("🚀 SceneScriptForm Console")
	fmt.Println("=================================")

	cfg, err := config.InitConfig()
	if err != nil {
		log.Printf("❌ 加载配置失败: %v", err)
		return
	}
	// 控制台只记录警告以上
	if err := utils.InitLogger("warn", cfg.LogFile); err != nil {
		log.Printf("⚠️ 无法初始化结构化日志: %v", err)
	}

	if err := app.InitServices(cfg); err != nil {
		log.Printf("❌ 初始化服务失败: %v", err)
		return
	}
	container := app.GetDIContainer()
	sessions, _ := di.Resolve[*services.SessionStore](container, di.ServiceSessions)
	submissions, _ := di.Resolve[*services.SubmissionService](container, di.ServiceSubmission)
	defer sessions.Shutdown()

	session := sessions.Create()
	fmt.Printf("生成服务: %s\n\n", cfg.GeneratorURL)

	runMenu(submissions, session)
}

// runMenu 主菜单循环; returns on exit or when stdin is exhausted.
func runMenu(submissions *services.SubmissionService, session *services.FormSession) {
	for {
		showMenu(session.Snapshot())
		choice, err := readLine("请选择: ")
		if err != nil {
			fmt.Println("\n👋 再见")
			return
		}
		switch strings.ToLower(choice) {
		case "1", "genre":
			setField(session, models.FieldGenre, chooseOption("类型", models.Genres()))
		case "2", "theme":
			setField(session, models.FieldTheme, getUserInput("主题: "))
		case "3", "style":
			setField(session, models.FieldVisualStyle, chooseOption("视觉风格", models.VisualStyles()))
		case "4", "generate":
			generate(submissions, session)
		case "0", "quit", "exit":
			fmt.Println("👋 再见")
			return
		default:
			fmt.Println("❌ 无效选择")
		}
		fmt.Println()
	}
}

// 显示菜单
func showMenu(snap models.Snapshot) {
	printBox("表单", fmt.Sprintf("1. 类型      [%s]\n2. 主题      [%s]\n3. 视觉风格  [%s]\n4. 生成剧本\n0. 退出",
		orDash(snap.Form.Genre), orDash(snap.Form.Theme), orDash(snap.Form.VisualStyle)))
}

func setField(session *services.FormSession, name, value string) {
	if value == "" {
		return
	}
	if err := session.SetField(name, value); err != nil {
		fmt.Printf("❌ %v\n", err)
	}
}

// chooseOption accepts either a list number or the option text.
func chooseOption(label string, options []string) string {
	for i, opt := range options {
		fmt.Printf("  %d. %s\n", i+1, opt)
	}
	input := getUserInput(fmt.Sprintf("选择%s: ", label))
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	for _, opt := range options {
		if strings.EqualFold(opt, input) {
			return opt
		}
	}
	if input != "" {
		fmt.Printf("❌ 未知%s: %s\n", label, input)
	}
	return ""
}

func generate(submissions *services.SubmissionService, session *services.FormSession) {
	if missing := session.Form().Missing(); len(missing) > 0 {
		fmt.Printf("⚠️ 请先填写: %s\n", strings.Join(missing, ", "))
		return
	}

	// Ctrl+C 取消当前请求
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("⏳ Generating...")
	snap, err := submissions.Submit(ctx, session)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}

	switch snap.Phase {
	case models.PhaseSucceeded:
		printScript(snap.Script)
	case models.PhaseFailed:
		fmt.Printf("❌ %s\n", snap.Error)
	}
}

func printScript(script *models.GeneratedScript) {
	var b strings.Builder
	if len(script.Scenes) == 0 {
		b.WriteString("(no scenes)")
	}
	for i, scene := range script.Scenes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Scene %d\n%s\n%s", scene.SceneNumber, scene.Description, scene.Dialogue)
	}
	printBox(script.Title, b.String())
}

// 获取用户输入; an exhausted stdin reads as empty input.
func getUserInput(prompt string) string {
	line, _ := readLine(prompt)
	return line
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	if !scanner.Scan() {
		return "", errInputClosed
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printBox 打印带边框的文本块
func printBox(title, content string) {
	lines := strings.Split(content, "\n")
	width := utf8.RuneCountInString(title)
	for _, line := range lines {
		if n := utf8.RuneCountInString(line); n > width {
			width = n
		}
	}

	border := strings.Repeat("─", width+2)
	fmt.Printf("┌%s┐\n", border)
	if title != "" {
		fmt.Printf("│ %s%s │\n", title, strings.Repeat(" ", width-utf8.RuneCountInString(title)))
		fmt.Printf("├%s┤\n", border)
	}
	for _, line := range lines {
		fmt.Printf("│ %s%s │\n", line, strings.Repeat(" ", width-utf8.RuneCountInString(line)))
	}
	fmt.Printf("└%s┘\n", border)
}
