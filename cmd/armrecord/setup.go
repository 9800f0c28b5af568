package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/armrecord/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	roleController = "controller"
	roleFollower   = "follower"
)

type SetupCommand struct {
	MaxID int `long:"max-id" default:"16" description:"Highest servo ID to scan for"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armrecord setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	// Keep recording defaults from an existing config.
	config := &robot.Config{Record: robot.DefaultRecordConfig()}
	if existing, err := robot.LoadConfigFrom(opts.Config); err == nil {
		config.Record = existing.Record.WithDefaults()
	}

	// Step 1: Scan for arms
	controllerPort, followerPort := scanForArms(c.MaxID)
	config.Controller.Port = controllerPort
	config.Follower.Port = followerPort

	// Step 2: Calibrate both arms
	for _, step := range []struct {
		arm  *robot.ArmConfig
		role string
	}{
		{&config.Controller, roleController},
		{&config.Follower, roleFollower},
	} {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render(fmt.Sprintf("━━━ Calibrating %s arm ━━━", step.role)))
		fmt.Println()
		if err := calibrateArm(step.arm, step.role, c.MaxID); err != nil {
			return err
		}
		if err := config.SaveTo(opts.Config); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start recording with: " + headerStyle.Render("armrecord record"))

	return nil
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func scanForArms(maxID int) (controllerPort, followerPort string) {
	fmt.Println("Scanning for arms...")
	fmt.Println()

	arms := findArms(maxID)
	if len(arms) == 0 {
		fmt.Println("No two-joint arms found.")
		fmt.Println("Make sure your arms are connected and powered on.")
		os.Exit(1)
	}

	fmt.Printf("Found %d arm(s). Let's identify them...\n\n", len(arms))

	for _, arm := range arms {
		if controllerPort != "" && followerPort != "" {
			arm.bus.Close()
			continue
		}
		switch identifyArmWithWiggle(arm, controllerPort == "", followerPort == "") {
		case roleController:
			controllerPort = arm.port
		case roleFollower:
			followerPort = arm.port
		}
	}

	fmt.Println()
	if controllerPort == "" || followerPort == "" {
		fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
		if controllerPort == "" {
			fmt.Println("Controller arm not identified.")
		}
		if followerPort == "" {
			fmt.Println("Follower arm not identified.")
		}
		fmt.Println()
		fmt.Println("Both controller and follower are required for recording.")
		os.Exit(1)
	}

	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Arms identified:"))
	fmt.Printf("  Controller: %s\n", controllerPort)
	fmt.Printf("  Follower:   %s\n", followerPort)
	return controllerPort, followerPort
}

func openBus(port string) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: robot.DefaultBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
}

func findArms(maxID int) []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, err := openBus(port)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		servos, err := bus.Scan(ctx, 1, maxID)
		cancel()
		if err != nil || !isPlanarArm(servos) {
			bus.Close()
			continue
		}

		fmt.Printf("  Found arm on %s (servo IDs %d, %d)\n", port, servos[0].ID, servos[1].ID)
		arms = append(arms, armInfo{port: port, servos: sortServos(servos), bus: bus})
	}
	return arms
}

// isPlanarArm reports whether the bus carries exactly the two joint servos.
func isPlanarArm(servos []feetech.FoundServo) bool {
	return len(servos) == len(robot.AllMotors())
}

func sortServos(servos []feetech.FoundServo) []feetech.FoundServo {
	out := append([]feetech.FoundServo(nil), servos...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func identifyArmWithWiggle(arm armInfo, needController, needFollower bool) string {
	defer arm.bus.Close()

	ctx := context.Background()

	// Wiggle the root joint
	s := arm.servos[0]
	servo := feetech.NewServo(arm.bus, s.ID, s.Model)

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return ""
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return ""
	}

	fmt.Printf("\n  Wiggling arm on %s...\n", arm.port)

	// Wiggle: single gentle, slow movement
	wiggleAmount := 30
	moveTimeMs := 500
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}

	servo.Disable(ctx)

	var options []huh.Option[string]
	if needController {
		options = append(options, huh.NewOption("Controller (the one you move by hand)", roleController))
	}
	if needFollower {
		options = append(options, huh.NewOption("Follower (the one that is driven)", roleFollower))
	}
	options = append(options, huh.NewOption("Skip this arm", "skip"))

	var role string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which arm is on %s?", arm.port)).
				Description("The arm that just wiggled").
				Options(options...).
				Value(&role),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	if role == "skip" {
		return ""
	}
	return role
}

func calibrateArm(armConfig *robot.ArmConfig, role string, maxID int) error {
	fmt.Printf("Calibrating %s arm on %s\n", role, armConfig.Port)
	fmt.Println()

	bus, err := openBus(armConfig.Port)
	if err != nil {
		return fmt.Errorf("connect to %s arm: %w", role, err)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	found, err := bus.Scan(ctx, 1, maxID)
	cancel()
	if err != nil {
		return fmt.Errorf("scan %s arm: %w", role, err)
	}
	if !isPlanarArm(found) {
		return fmt.Errorf("%s arm: expected %d servos, found %d", role, len(robot.AllMotors()), len(found))
	}
	found = sortServos(found)

	// Lowest ID drives the root joint.
	motors := robot.AllMotors()
	servoMap := make(map[robot.MotorName]*feetech.Servo, len(motors))
	for i, name := range motors {
		servoMap[name] = feetech.NewServo(bus, found[i].ID, found[i].Model)
	}

	// Disable all servos so user can move arm freely
	bg := context.Background()
	for _, servo := range servoMap {
		servo.Disable(bg)
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move both joints to their minimum AND maximum positions,")
	fmt.Println("then leave the arm stretched out along the x axis.")
	fmt.Println()

	curPositions := make(map[robot.MotorName]int)
	minPositions := make(map[robot.MotorName]int)
	maxPositions := make(map[robot.MotorName]int)
	for _, name := range motors {
		pos, _ := servoMap[name].Position(bg)
		curPositions[name] = pos
		minPositions[name] = pos
		maxPositions[name] = pos
	}

	p := tea.NewProgram(newCalibrationModel(motors, servoMap, curPositions, minPositions, maxPositions))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)

	armConfig.Calibration = buildCalibration(motors, found, cm.curPositions, cm.minPositions, cm.maxPositions)
	fmt.Println()
	fmt.Printf("%s arm calibrated.\n", role)
	return nil
}

// buildCalibration takes the final resting pose, stretched along x, as the
// zero angle of every joint.
func buildCalibration(motors []robot.MotorName, servos []feetech.FoundServo, home, minPos, maxPos map[robot.MotorName]int) robot.Calibration {
	defaults := robot.DefaultCalibration()
	cal := make(robot.Calibration, len(motors))
	for i, name := range motors {
		cal[name] = robot.MotorCalibration{
			ID:           servos[i].ID,
			DriveMode:    defaults[name].DriveMode,
			HomingOffset: home[name] - robot.CenterStep,
			RangeMin:     minPos[name],
			RangeMax:     maxPos[name],
		}
	}
	return cal
}

// Calibration TUI model
type calibrationModel struct {
	motors       []robot.MotorName
	servoMap     map[robot.MotorName]*feetech.Servo
	curPositions map[robot.MotorName]int
	minPositions map[robot.MotorName]int
	maxPositions map[robot.MotorName]int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(
	motors []robot.MotorName,
	servoMap map[robot.MotorName]*feetech.Servo,
	curPositions, minPositions, maxPositions map[robot.MotorName]int,
) calibrationModel {
	return calibrationModel{
		motors:       motors,
		servoMap:     servoMap,
		curPositions: curPositions,
		minPositions: minPositions,
		maxPositions: maxPositions,
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for _, name := range m.motors {
			pos, err := m.servoMap[name].Position(ctx)
			if err != nil {
				continue
			}
			m.curPositions[name] = pos
			m.minPositions[name] = min(m.minPositions[name], pos)
			m.maxPositions[name] = max(m.maxPositions[name], pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableMotorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.motors))
	ranges := make([]int, 0, len(m.motors))
	for _, name := range m.motors {
		rangeSize := m.maxPositions[name] - m.minPositions[name]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			string(name),
			fmt.Sprintf("%d", m.curPositions[name]),
			fmt.Sprintf("%d", m.minPositions[name]),
			fmt.Sprintf("%d", m.maxPositions[name]),
			fmt.Sprintf("%d", rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
