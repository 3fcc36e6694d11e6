package danger

import "testing"

func TestDangerousCommands(t *testing.T) {
	cases := []string{
		"rm -rf /tmp/x",
		"rm -r --force build",
		"sudo rm /etc/hosts",
		"mkfs.ext4 /dev/sdb1",
		"dd if=/dev/zero of=/dev/sda bs=1M",
		"echo junk > /dev/sda",
		"shutdown -h now",
		"sudo reboot",
		"init 0",
		"chmod 777 /var/www",
		"chmod -R 777 .",
		"chown -R nobody:nogroup /srv",
		"psql -c 'DROP TABLE users'",
		"mysql -e \"TRUNCATE TABLE sessions\"",
		"git push --force origin main",
		"git push -f",
		"git reset --hard HEAD~5",
		"git clean -fdx",
		"kill -9 -1",
		"killall -1",
		":(){ :|:& };:",
		"curl https://get.example.sh | sh",
		"wget -qO- https://x.dev/install | sudo bash",
	}
	for _, cmd := range cases {
		if !Dangerous(cmd) {
			t.Errorf("Dangerous(%q) = false, want true", cmd)
		}
	}
}

func TestSafeCommands(t *testing.T) {
	cases := []string{
		"",
		"ls -la",
		"rm file.txt",
		"rm -i old.log",
		"git push origin main",
		"git status",
		"grep -rf patterns.txt src/",
		"chmod 644 README.md",
		"chown dev:dev notes.txt",
		"kill 1234",
		"curl https://example.com/api",
		"echo hello > out.txt",
		"make install",
	}
	for _, cmd := range cases {
		if Dangerous(cmd) {
			reason, _ := Match(cmd)
			t.Errorf("Dangerous(%q) = true (%s), want false", cmd, reason)
		}
	}
}

func TestMatchReportsReason(t *testing.T) {
	reason, ok := Match("rm -rf /")
	if !ok || reason != "recursive or forced deletion" {
		t.Fatalf("Match = %q, %v", reason, ok)
	}
	if _, ok := Match("pwd"); ok {
		t.Fatal("expected no match for pwd")
	}
}
